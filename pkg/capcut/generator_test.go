package capcut

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mystery-narrator/pkg/types"

	"go.uber.org/zap"
)

func writeFakeAsset(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("png-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleShots(t *testing.T, assetDir string) []types.Shot {
	return []types.Shot{
		{Index: 0, Duration: 4.8, Script: "老宅的门虚掩着。", AssetRef: writeFakeAsset(t, assetDir, "a.png"), RenderOK: true},
		{Index: 1, Duration: 5.0, Script: "地板上有一道拖痕。", AssetRef: writeFakeAsset(t, assetDir, "b.png"), RenderOK: true},
	}
}

func TestGenerateDraftLayout(t *testing.T) {
	assetDir := t.TempDir()
	outDir := t.TempDir()
	audio := writeFakeAsset(t, assetDir, "voice.mp3")

	g := NewGenerator(zap.NewNop())
	zipPath, err := g.GenerateDraft(sampleShots(t, assetDir), audio, outDir, "case01")
	if err != nil {
		t.Fatal(err)
	}

	draftDir := filepath.Join(outDir, "case01")
	for _, f := range []string{
		"draft_content.json",
		"draft_meta_info.json",
		"case01.srt",
		filepath.Join("media", "1.png"),
		filepath.Join("media", "2.png"),
		filepath.Join("media", "audio.mp3"),
	} {
		if _, err := os.Stat(filepath.Join(draftDir, f)); err != nil {
			t.Errorf("草稿目录缺少%s: %v", f, err)
		}
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("压缩包应落盘: %v", err)
	}
}

func TestGenerateDraftTrackTimings(t *testing.T) {
	assetDir := t.TempDir()
	outDir := t.TempDir()

	g := NewGenerator(zap.NewNop())
	_, err := g.GenerateDraft(sampleShots(t, assetDir), "", outDir, "case02")
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "case02", "draft_content.json"))
	if err != nil {
		t.Fatal(err)
	}
	var content DraftContent
	if err := json.Unmarshal(data, &content); err != nil {
		t.Fatal(err)
	}

	// 总时长 = 4.8s + 5.0s = 9800000微秒
	if content.Duration != 9800000 {
		t.Errorf("草稿总时长应为9800000微秒，实际%d", content.Duration)
	}

	for _, track := range content.Tracks {
		if track.Type != "video" && track.Type != "text" {
			continue
		}
		if len(track.Segments) != 2 {
			t.Fatalf("%s轨应有2个片段，实际%d", track.Type, len(track.Segments))
		}
		// 片段首尾相接，累计覆盖总时长
		var cursor int64
		for i, seg := range track.Segments {
			if seg.TargetTimerange.Start != cursor {
				t.Errorf("%s轨片段%d起点应为%d，实际%d", track.Type, i, cursor, seg.TargetTimerange.Start)
			}
			cursor += seg.TargetTimerange.Duration
		}
		if cursor != content.Duration {
			t.Errorf("%s轨片段时长之和应等于总时长，实际%d != %d", track.Type, cursor, content.Duration)
		}
	}
}

func TestGenerateDraftEmptyShots(t *testing.T) {
	g := NewGenerator(zap.NewNop())
	if _, err := g.GenerateDraft(nil, "", t.TempDir(), "x"); err == nil {
		t.Error("空分镜应返回错误")
	}
}

func TestGenerateDraftZipEntries(t *testing.T) {
	assetDir := t.TempDir()
	outDir := t.TempDir()

	g := NewGenerator(zap.NewNop())
	zipPath, err := g.GenerateDraft(sampleShots(t, assetDir), "", outDir, "case03")
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		"case03/draft_content.json",
		"case03/draft_meta_info.json",
		"case03/case03.srt",
		"case03/media/1.png",
	} {
		if !names[want] {
			t.Errorf("压缩包缺少条目%s，现有%v", want, names)
		}
	}
}

func TestImportSubtitleSegments(t *testing.T) {
	srtContent := "1\n00:00:00,000 --> 00:00:04,800\n老宅的门虚掩着。\n\n2\n00:00:04,800 --> 00:00:09,800\n地板上有一道拖痕。\n\n"
	path := filepath.Join(t.TempDir(), "in.srt")
	if err := os.WriteFile(path, []byte(srtContent), 0644); err != nil {
		t.Fatal(err)
	}

	segments, err := ImportSubtitleSegments(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Fatalf("期望2个片段，实际%d", len(segments))
	}
	if segments[0].End != 4.8 {
		t.Errorf("首段终点应为4.8秒，实际%f", segments[0].End)
	}
	if segments[1].Index != 1 {
		t.Errorf("片段下标应连续，实际%d", segments[1].Index)
	}
}
