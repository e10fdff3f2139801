package models

import "time"

// TechLogEvent — одна распарсенная строка технологического журнала 1С.
// Отсутствующее в строке поле представлено nil, а не нулём:
// агрегаты должны пропускать NULL, а не считать событие нулевой длительности.
type TechLogEvent struct {
	EventDate   *time.Time // дата из имени файла (ГГГГММДД), если в строке её нет
	Hour        *uint8
	Minute      *uint8
	Second      *uint8
	Millisecond *uint16

	// Длительности в микросекундах, как их пишет платформа.
	Duration *uint64
	WaitTime *uint64
	LockTime *uint64

	Transaction *uint32
	Connection  *uint32
	Session     *uint32
	DBPID       *uint32

	User     *string
	Computer *string
	AppID    *string
	Context  *string
	DBMS     *string
	Func     *string

	// Разбираются ради приоритета правил, в таблицу не пишутся.
	Data  *string
	Block *string

	// Исходная строка целиком, сохраняется всегда.
	RawLine string
}

// DailyLockStat — агрегат по блокировкам за один день.
// Производная выборка из ClickHouse, нигде не хранится.
type DailyLockStat struct {
	Date           time.Time
	AvgLockTime    float64
	MaxLockTime    float64
	LongLocksCount uint64
	DeadlockCount  uint64
	LockEvents     uint64
}

// TableLockStat — агрегат по одной таблице за текущий день.
type TableLockStat struct {
	TableName   string
	LockCount   uint64
	AvgLockTime float64
	MaxLockTime float64
}

// RiskLevel — порядковый уровень риска эскалации блокировок.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskNormal   RiskLevel = "normal"
	RiskInfo     RiskLevel = "info"
	RiskWarning  RiskLevel = "warning"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment — результат одного прогона анализа тренда.
// Живёт только до передачи диспетчеру алертов.
type RiskAssessment struct {
	TrendPercent   float64
	BaseAvg        float64
	CurrentAvg     float64
	RiskLevel      RiskLevel
	Message        string
	DeadlocksToday uint64
	LongLocksToday uint64
}
