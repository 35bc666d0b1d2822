package config

import (
	"os"
	"path/filepath"
	"testing"

	"roicam/camera"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roicam.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
cameras:
  - id: CAM_A
    stream_url: rtsp://10.0.0.10:554/main
    control_url: http://admin:pw@10.0.0.10:80/
  - id: CAM_C
    stream_url: rtsp://10.0.0.12:554/main
    control_url: http://admin:pw@10.0.0.12:80/
inference:
  camera: CAM_C
  model_path: /opt/models/lane.onnx
  confidence: 0.6
  interval_ms: 50
  required: true
display:
  fps: 25
  min_drag_px: 8
  listen_addr: ":9000"
debug: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Cameras) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(cfg.Cameras))
	}
	if cfg.Cameras[0].ID != "CAM_A" || cfg.Cameras[0].StreamURL != "rtsp://10.0.0.10:554/main" {
		t.Errorf("bad camera parse: %+v", cfg.Cameras[0])
	}
	if !cfg.Inference.Required || cfg.Inference.Confidence != 0.6 {
		t.Errorf("bad inference parse: %+v", cfg.Inference)
	}
	if cfg.Display.FPS != 25 || cfg.Display.ListenAddr != ":9000" {
		t.Errorf("bad display parse: %+v", cfg.Display)
	}
	if !cfg.Debug {
		t.Error("debug flag should be set")
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
cameras:
  - id: CAM_A
    stream_url: rtsp://10.0.0.10:554/main
    control_url: http://admin:pw@10.0.0.10:80/
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	def := Default()
	if cfg.Display.FPS != def.Display.FPS {
		t.Errorf("display fps should default to %d, got %d", def.Display.FPS, cfg.Display.FPS)
	}
	if cfg.Inference.Confidence != def.Inference.Confidence {
		t.Errorf("confidence should default to %f, got %f", def.Inference.Confidence, cfg.Inference.Confidence)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate camera", `
cameras:
  - {id: CAM_A, stream_url: rtsp://h/1, control_url: "http://u:p@h/"}
  - {id: CAM_A, stream_url: rtsp://h/2, control_url: "http://u:p@h/"}
`},
		{"missing stream", `
cameras:
  - {id: CAM_A, control_url: "http://u:p@h/"}
`},
		{"unknown inference camera", `
cameras:
  - {id: CAM_A, stream_url: rtsp://h/1, control_url: "http://u:p@h/"}
inference:
  camera: CAM_B
`},
		{"bad confidence", `
cameras:
  - {id: CAM_A, stream_url: rtsp://h/1, control_url: "http://u:p@h/"}
inference:
  camera: CAM_A
  confidence: 1.5
`},
		{"bad fps", `
cameras:
  - {id: CAM_A, stream_url: rtsp://h/1, control_url: "http://u:p@h/"}
display:
  fps: -1
`},
		{"not yaml", `{{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/roicam.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestDefaultInferenceRunsOnPrimaryCamera(t *testing.T) {
	def := Default()
	if def.Inference.Camera != string(camera.CamA) {
		t.Fatalf("default inference camera should be %s, got %s", camera.CamA, def.Inference.Camera)
	}
}
