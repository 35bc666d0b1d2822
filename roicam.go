package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"roicam/camera"
	"roicam/config"
	"roicam/gesture"
	"roicam/lanedet"
	"roicam/overlay"
	"roicam/roi"
	"roicam/shell"

	"gocv.io/x/gocv"
)

const statusReportInterval = 15 * time.Second

var (
	configPath   = flag.String("config", "", "Path to YAML configuration file (omit for built-in defaults)")
	debugMode    = flag.Bool("debug", false, "Enable debug logging to console and /tmp/roicam")
	listenAddr   = flag.String("listen", "", "UI listen address override\n\t\tExample: -listen=:9000")
	modelPath    = flag.String("model", "", "Lane model path override\n\t\tExample: -model=/opt/models/lane.onnx")
	snapshotPath = flag.String("snapshot-path", "/tmp/roicam", "Directory for snapshot captures")

	globalDebugLogger *DebugLogger
)

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message)
	} else {
		fmt.Printf("[%s] %s\n", component, message)
	}
}

// DebugLogger provides unified debug message handling for console and
// async file output.
type DebugLogger struct {
	enabled       bool
	baseDir       string
	logFile       *os.File
	writeQueue    chan string
	stopWorker    chan bool
	workerStopped sync.WaitGroup
}

// NewDebugLogger creates a unified debug logger. File output only
// happens in debug mode; console output always does.
func NewDebugLogger(enabled bool) *DebugLogger {
	baseDir := "/tmp/roicam"
	dl := &DebugLogger{
		enabled:    enabled,
		baseDir:    baseDir,
		writeQueue: make(chan string, 100),
		stopWorker: make(chan bool, 1),
	}

	if enabled {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			fmt.Printf("[DEBUG_LOGGER] Failed to create debug directory: %v\n", err)
			dl.enabled = false
			return dl
		}
		name := filepath.Join(baseDir, fmt.Sprintf("roicam_%s.log", time.Now().Format("20060102_150405")))
		f, err := os.Create(name)
		if err != nil {
			fmt.Printf("[DEBUG_LOGGER] Failed to create log file: %v\n", err)
			dl.enabled = false
			return dl
		}
		dl.logFile = f
		dl.workerStopped.Add(1)
		go dl.fileWriteWorker()
	}
	return dl
}

func (dl *DebugLogger) debugMsg(component, message string) {
	timestamp := time.Now()
	consoleMsg := fmt.Sprintf("[%s][%s] %s",
		timestamp.Format("15:04:05.000"), component, message)
	fmt.Println(consoleMsg)

	if dl.enabled {
		select {
		case dl.writeQueue <- consoleMsg + "\n":
		default:
			// Queue full: console already has the message, drop the file copy.
		}
	}
}

func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerStopped.Done()

	for {
		select {
		case line := <-dl.writeQueue:
			dl.logFile.WriteString(line)

		case <-dl.stopWorker:
			for len(dl.writeQueue) > 0 {
				dl.logFile.WriteString(<-dl.writeQueue)
			}
			dl.logFile.Sync()
			return
		}
	}
}

// Close flushes and stops the file writer.
func (dl *DebugLogger) Close() {
	if dl.enabled {
		dl.stopWorker <- true
		dl.workerStopped.Wait()
		dl.logFile.Close()
	}
}

// app bundles everything that needs an orderly shutdown.
type app struct {
	sources    map[camera.ID]*camera.Source
	channels   map[camera.ID]*camera.Channel
	manager    *roi.Manager
	compositor *overlay.Compositor
	laneWorker *lanedet.Worker
	detector   *lanedet.Detector
	server     *shell.Server
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("Configuration error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *debugMode {
		cfg.Debug = true
	}
	if *listenAddr != "" {
		cfg.Display.ListenAddr = *listenAddr
	}
	if *modelPath != "" {
		cfg.Inference.ModelPath = *modelPath
	}

	globalDebugLogger = NewDebugLogger(cfg.Debug)
	defer globalDebugLogger.Close()

	// Provide the unified debug function to every package.
	camera.SetDebugFunction(debugMsg)
	roi.SetDebugFunction(debugMsg)
	gesture.SetDebugFunction(debugMsg)
	lanedet.SetDebugFunction(debugMsg)
	overlay.SetDebugFunction(debugMsg)
	shell.SetDebugFunction(debugMsg)

	debugMsg("MAIN", fmt.Sprintf("starting with %d cameras, UI on %s", len(cfg.Cameras), cfg.Display.ListenAddr))

	a := &app{
		sources:  make(map[camera.ID]*camera.Source),
		channels: make(map[camera.ID]*camera.Channel),
		manager:  roi.NewManager(),
		server:   shell.NewServer(cfg.Display.ListenAddr),
	}
	a.compositor = overlay.NewCompositor(overlay.NewRenderer(), a.server.FrameSink(), cfg.Display.FPS)
	a.compositor.SetRegions(a.manager)

	ctx := context.Background()
	for _, camCfg := range cfg.Cameras {
		a.bringUpCamera(ctx, camCfg, cfg.Display.MinDragPx)
	}

	a.bringUpInference(cfg.Inference)
	a.server.SetSnapshotHandler(a.saveSnapshot)

	a.compositor.Start()
	go func() {
		if err := a.server.Start(); err != nil {
			debugMsg("MAIN_ERROR", fmt.Sprintf("UI server failed: %v", err))
		}
	}()

	go a.statusMonitor()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	debugMsg("MAIN", fmt.Sprintf("received signal %v, shutting down", sig))

	a.shutdown()
}

// bringUpCamera connects one camera and wires its control channel,
// region state and gesture input. A camera that fails to connect stays
// in the error state and shows on the display; the others proceed.
func (a *app) bringUpCamera(ctx context.Context, camCfg config.CameraConfig, minDragPx int) {
	id := camera.ID(camCfg.ID)
	netCfg := camera.NetConfig{
		Camera:     id,
		StreamURL:  camCfg.StreamURL,
		ControlURL: camCfg.ControlURL,
	}

	src := camera.NewSource(id, func(ctx context.Context, cam camera.ID) (camera.Device, error) {
		return camera.OpenNetDevice(ctx, netCfg)
	})
	src.SetOnStateChanged(a.server.PublishStatus)
	a.sources[id] = src
	a.compositor.AddSource(src)
	a.server.RegisterCamera(id)

	if err := src.Connect(ctx); err != nil {
		debugMsg("MAIN_ERROR", fmt.Sprintf("%s failed to connect: %v", id, err))
	} else if dev := src.Device(); dev != nil {
		ch := camera.NewChannel(id, dev)
		ch.SetOnError(a.server.PublishCommandError)
		ch.Start()
		// Push the retained settings so the hardware matches the app.
		ch.ApplyAll()
		a.channels[id] = ch
		a.manager.Attach(id, ch)
	}

	ctrl := gesture.NewController(id, func(rect camera.NormRect) error {
		return a.manager.SetROI(id, rect)
	})
	if minDragPx > 0 {
		ctrl.SetMinDrag(float64(minDragPx))
	}
	a.server.RegisterPointerHandler(id, ctrl)
	a.compositor.SetPreview(id, ctrl)
}

// bringUpInference loads the lane model and starts the worker on the
// configured camera. A missing model degrades to capture-only unless the
// configuration marks inference as required.
func (a *app) bringUpInference(infCfg config.InferenceConfig) {
	if infCfg.Camera == "" {
		return
	}
	src, ok := a.sources[camera.ID(infCfg.Camera)]
	if !ok {
		debugMsg("MAIN_ERROR", fmt.Sprintf("inference camera %s not configured", infCfg.Camera))
		return
	}

	det, err := lanedet.NewDetector(infCfg.ModelPath, infCfg.Confidence)
	if err != nil {
		if infCfg.Required {
			fmt.Printf("Lane model required but unavailable: %v\n", err)
			os.Exit(1)
		}
		debugMsg("MAIN", fmt.Sprintf("lane detection disabled: %v", err))
		det = nil
	}
	a.detector = det

	a.laneWorker = lanedet.NewWorker(det, src, time.Duration(infCfg.IntervalMs)*time.Millisecond)
	a.compositor.SetResults(src.Camera(), a.laneWorker)
	a.laneWorker.Start()
}

// saveSnapshot writes the newest frame of a camera to the snapshot
// directory.
func (a *app) saveSnapshot(id camera.ID) {
	src, ok := a.sources[id]
	if !ok {
		return
	}
	frame, err := src.Snapshot()
	if err != nil {
		debugMsg("SNAPSHOT_ERROR", fmt.Sprintf("%s: %v", id, err))
		return
	}
	defer frame.Image.Close()

	if err := os.MkdirAll(*snapshotPath, 0755); err != nil {
		debugMsg("SNAPSHOT_ERROR", fmt.Sprintf("cannot create %s: %v", *snapshotPath, err))
		return
	}
	name := filepath.Join(*snapshotPath,
		fmt.Sprintf("%s_%s.jpg", id, frame.Timestamp.Format("20060102_150405.000")))
	if ok := gocv.IMWrite(name, frame.Image); !ok {
		debugMsg("SNAPSHOT_ERROR", fmt.Sprintf("%s: failed to write %s", id, name))
		return
	}
	debugMsg("SNAPSHOT", fmt.Sprintf("%s saved %s", id, name))
}

// statusMonitor periodically logs per-camera state, drop counts and the
// measured display rate.
func (a *app) statusMonitor() {
	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()

	for range ticker.C {
		for id, src := range a.sources {
			st := src.Status()
			line := fmt.Sprintf("%s %s", id, st.State)
			if st.Reason != "" {
				line += " (" + st.Reason + ")"
			}
			line += fmt.Sprintf(" display=%.1ffps", a.compositor.FPS(id))
			debugMsg("STATUS", line)
		}
		if a.laneWorker != nil && !a.laneWorker.Disabled() {
			if res := a.laneWorker.Latest(); res != nil {
				debugMsg("STATUS", fmt.Sprintf("lanes=%d on %s (seq %d)", len(res.Lanes), res.Camera, res.Seq))
			}
		}
	}
}

// shutdown tears the pipeline down in dependency order: display first,
// then inference, then control, then capture.
func (a *app) shutdown() {
	a.compositor.Stop()

	if a.laneWorker != nil {
		a.laneWorker.Stop()
	}
	if a.detector != nil {
		a.detector.Close()
	}

	for id, ch := range a.channels {
		ch.Close()
		a.manager.Detach(id)
	}
	for _, src := range a.sources {
		src.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	a.server.Shutdown(ctx)

	debugMsg("MAIN", "shutdown complete")
}
