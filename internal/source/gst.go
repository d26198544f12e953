package source

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstSource opens video streams through a GStreamer pipeline:
//
//	uridecodebin → videoconvert → capsfilter(RGB) → appsink
//
// uridecodebin accepts rtsp://, udp:// and file URIs alike, so the same
// source serves the device's live feed and recorded test material.
type GstSource struct {
	// ReadTimeout bounds a single Read on handles opened by this source
	// (default: 3s)
	ReadTimeout time.Duration
}

// Open builds the pipeline, starts it and waits up to connectTimeout for it
// to reach PLAYING.
func (s *GstSource) Open(uri string, connectTimeout time.Duration) (Handle, error) {
	if uri == "" {
		return nil, fmt.Errorf("gst: source URI is required")
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create pipeline: %w", err)
	}

	decodebin, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create uridecodebin: %w", err)
	}
	decodebin.SetProperty("uri", uri)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGB"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gst: failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(decodebin, converter, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("gst: failed to link pipeline elements: %w", err)
	}

	// uridecodebin pads are dynamic, linked once the stream type is known.
	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := converter.GetStaticPad("sink")
		if sinkPad == nil {
			slog.Error("gst: failed to get sink pad from videoconvert")
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			slog.Error("gst: failed to link pads",
				"src_pad", srcPad.GetName(),
				"ret", ret,
			)
		}
	})

	readTimeout := s.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 3 * time.Second
	}

	h := &gstHandle{
		pipeline:    pipeline,
		appsink:     appsink,
		readTimeout: readTimeout,
		frames:      make(chan Frame, 10),
		failed:      make(chan error, 1),
		done:        make(chan struct{}),
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: h.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("gst: failed to start pipeline: %w", err)
	}

	if err := h.awaitPlaying(connectTimeout); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, err
	}

	h.wg.Add(1)
	go h.monitorBus()

	slog.Info("gst: stream opened", "uri", uri)
	return h, nil
}

type gstHandle struct {
	pipeline    *gst.Pipeline
	appsink     *app.Sink
	readTimeout time.Duration

	frames chan Frame
	failed chan error

	seq     uint64
	dropped uint64

	done        chan struct{}
	releaseOnce sync.Once
	wg          sync.WaitGroup
}

// awaitPlaying blocks until the pipeline reaches PLAYING or the connect
// bound elapses.
func (h *gstHandle) awaitPlaying(timeout time.Duration) error {
	bus := h.pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("gst: pipeline did not reach PLAYING within %v", timeout)
		}

		msg := bus.TimedPop(remaining)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("gst: pipeline error during connect: %s", gerr.Error())
		case gst.MessageEOS:
			return fmt.Errorf("gst: stream ended during connect")
		case gst.MessageStateChanged:
			if msg.Source() == h.pipeline.GetName() {
				_, newState := msg.ParseStateChanged()
				if newState == gst.StatePlaying {
					return nil
				}
			}
		}
	}
}

// onNewSample copies the mapped buffer out and hands the frame to Read.
// A single bad sample is skipped, never fatal.
func (h *gstHandle) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gst: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gst: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gst: empty buffer received")
		return gst.FlowOK
	}

	// Copy out: GStreamer reuses the buffer after Unmap.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	width, height := sampleDimensions(sample)

	h.seq++
	frame := Frame{
		Seq:       h.seq,
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Format:    FormatRGB,
		Data:      frameData,
		TraceID:   uuid.New().String(),
	}

	select {
	case h.frames <- frame:
	default:
		h.dropped++
		slog.Debug("gst: dropping frame, channel full", "seq", frame.Seq)
	}

	return gst.FlowOK
}

// sampleDimensions reads width/height from the sample's negotiated caps.
func sampleDimensions(sample *gst.Sample) (int, int) {
	caps := sample.GetCaps()
	if caps == nil {
		return 0, 0
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0
	}
	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, _ := width.(int)
	hh, _ := height.(int)
	return w, hh
}

// monitorBus watches for pipeline errors and end-of-stream, translating them
// into Read failures.
func (h *gstHandle) monitorBus() {
	defer h.wg.Done()
	bus := h.pipeline.GetPipelineBus()

	for {
		select {
		case <-h.done:
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gst: end of stream received")
			h.fail(ErrEndOfStream)
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gst: pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			h.fail(fmt.Errorf("gst: pipeline error: %s", gerr.Error()))
			return
		}
	}
}

func (h *gstHandle) fail(err error) {
	select {
	case h.failed <- err:
	default:
	}
}

// Read returns the next decoded frame, ErrReadTimeout if none arrives within
// the read bound, ErrEndOfStream once the pipeline reports EOS, or the
// pipeline error that stopped it.
func (h *gstHandle) Read() (Frame, error) {
	select {
	case <-h.done:
		return Frame{}, ErrReleased
	default:
	}

	select {
	case frame := <-h.frames:
		return frame, nil
	case err := <-h.failed:
		// Put it back so subsequent Reads keep failing the same way.
		h.fail(err)
		return Frame{}, err
	case <-h.done:
		return Frame{}, ErrReleased
	case <-time.After(h.readTimeout):
		return Frame{}, ErrReadTimeout
	}
}

// Release stops the pipeline and frees its resources. Idempotent.
func (h *gstHandle) Release() {
	h.releaseOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.pipeline.SetState(gst.StateNull)
		slog.Debug("gst: stream released", "frames", h.seq, "dropped", h.dropped)
	})
}
