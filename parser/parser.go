// Package parser разбирает строки технологического журнала 1С
// в типизированные события TechLogEvent.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"1CLockAnalyzer/models"
)

// timeRe — время события в нулевом сегменте строки: ЧЧ:ММ:СС.ммм
var timeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})\.(\d{3})`)

// rule — одно правило извлечения поля из сегмента строки.
type rule struct {
	name string
	re   *regexp.Regexp
	set  func(e *models.TechLogEvent, raw string)
}

// rules — упорядоченный список правил извлечения. Порядок — явный контракт:
// сегмент отдаётся ПЕРВОМУ совпавшему правилу, и дальше правила для этого
// сегмента не проверяются. Перестановка правил меняет, какому полю достанется
// неоднозначный фрагмент, поэтому порядок зафиксирован и покрыт тестом.
var rules = []rule{
	{"duration", regexp.MustCompile(`duration=(\d+)`), func(e *models.TechLogEvent, raw string) { e.Duration = parseU64(raw) }},
	{"waitTime", regexp.MustCompile(`waitTime=(\d+)`), func(e *models.TechLogEvent, raw string) { e.WaitTime = parseU64(raw) }},
	{"lockTime", regexp.MustCompile(`lockTime=(\d+)`), func(e *models.TechLogEvent, raw string) { e.LockTime = parseU64(raw) }},
	{"transaction", regexp.MustCompile(`transaction=(\d+)`), func(e *models.TechLogEvent, raw string) { e.Transaction = parseU32(raw) }},
	{"connection", regexp.MustCompile(`connection=(\d+)`), func(e *models.TechLogEvent, raw string) { e.Connection = parseU32(raw) }},
	{"session", regexp.MustCompile(`session=(\d+)`), func(e *models.TechLogEvent, raw string) { e.Session = parseU32(raw) }},
	{"user", regexp.MustCompile(`user="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.User = &raw }},
	{"computer", regexp.MustCompile(`computer="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.Computer = &raw }},
	{"app-id", regexp.MustCompile(`app-id="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.AppID = &raw }},
	{"data", regexp.MustCompile(`data="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.Data = &raw }},
	{"context", regexp.MustCompile(`context="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.Context = &raw }},
	{"dbms", regexp.MustCompile(`dbms="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.DBMS = &raw }},
	{"dbpid", regexp.MustCompile(`dbpid=(\d+)`), func(e *models.TechLogEvent, raw string) { e.DBPID = parseU32(raw) }},
	{"block", regexp.MustCompile(`block="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.Block = &raw }},
	{"func", regexp.MustCompile(`func="([^"]*)"`), func(e *models.TechLogEvent, raw string) { e.Func = &raw }},
}

// ParseLine разбирает одну строку техжурнала.
// Возвращает (nil, false), если в строке меньше пяти сегментов через запятую —
// такая строка обрезана или не является записью журнала, её пропускает caller.
// Чистая функция: одна и та же строка всегда даёт одинаковый результат.
func ParseLine(line string) (*models.TechLogEvent, bool) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")
	if len(parts) < 5 {
		return nil, false
	}

	e := &models.TechLogEvent{RawLine: line}

	// Время в нулевом сегменте; его отсутствие не отбраковывает строку,
	// поля времени просто остаются пустыми.
	if m := timeRe.FindStringSubmatch(parts[0]); m != nil {
		e.Hour = parseU8(m[1])
		e.Minute = parseU8(m[2])
		e.Second = parseU8(m[3])
		e.Millisecond = parseU16(m[4])
	}

	for _, part := range parts[1:] {
		for _, r := range rules {
			if m := r.re.FindStringSubmatch(part); m != nil {
				r.set(e, m[1])
				break // сегмент даёт не больше одного поля
			}
		}
	}
	return e, true
}

// Числовые преобразования: при ошибке поле остаётся nil, не нулём.

func parseU64(s string) *uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseU32(s string) *uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil
	}
	v := uint32(n)
	return &v
}

func parseU16(s string) *uint16 {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil
	}
	v := uint16(n)
	return &v
}

func parseU8(s string) *uint8 {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return nil
	}
	v := uint8(n)
	return &v
}
