package storage

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "processed_files.json"))

	// пустой стор — пустая карта, не ошибка
	loaded, err := fs.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("ожидалась пустая карта: %v", loaded)
	}

	data := map[string]int64{
		"/var/log/techlog/rphost_1234/24011510.log": 40960,
		"/var/log/techlog/rphost_1234/24011511.log": 0,
	}
	if err := fs.Save(data); err != nil {
		t.Fatal(err)
	}
	loaded, err = fs.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, data) {
		t.Errorf("прочитано %v, ожидалось %v", loaded, data)
	}
}
