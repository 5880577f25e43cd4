package srt

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseSrtTime(t *testing.T) {
	micros, err := ParseSrtTime("00:01:02,345")
	if err != nil {
		t.Fatal(err)
	}
	if micros != 62345000 {
		t.Errorf("期望62345000微秒，实际%d", micros)
	}
}

func TestFormatSrtTime(t *testing.T) {
	if got := FormatSrtTime(62345000); got != "00:01:02,345" {
		t.Errorf("期望00:01:02,345，实际%s", got)
	}
	if got := FormatSrtTime(0); got != "00:00:00,000" {
		t.Errorf("期望00:00:00,000，实际%s", got)
	}
}

func TestSrtRoundTrip(t *testing.T) {
	entries := []SrtEntry{
		{ID: 1, Start: 0, End: 4800000, Text: "老宅的门虚掩着。"},
		{ID: 2, Start: 4800000, End: 9600000, Text: "地板上有一道拖痕。"},
	}

	path := filepath.Join(t.TempDir(), "sub.srt")
	if err := WriteSrtFile(path, entries); err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseSrtFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(entries, parsed) {
		t.Errorf("SRT写出再解析应一致\n写出: %v\n解析: %v", entries, parsed)
	}
}
