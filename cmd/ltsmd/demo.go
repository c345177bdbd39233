package main

import (
	"log"
	"sync"
	"time"

	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

// demoDisplay is a synthetic FrameSource/InputSink/ClipboardEndpoint/
// DisplayControl, standing in for the real capture/input backend a
// deployment wires up instead (those four interfaces are the seam).
// A ticker redraws a test pattern and feeds the whole screen as damage
// every frame.
type demoDisplay struct {
	mu     sync.Mutex
	fb     *framebuffer.FrameBuffer
	width  uint16
	height uint16
	damage chan region.Region
	logger *log.Logger
	text   string
}

func newDemoDisplay(width, height uint16, logger *log.Logger) *demoDisplay {
	d := &demoDisplay{
		fb:     framebuffer.New(region.New(0, 0, width, height), pixelformat.RGBA32),
		width:  width,
		height: height,
		damage: make(chan region.Region, 1),
		logger: logger,
	}
	return d
}

// run redraws the test pattern at 30fps until stop is closed.
func (d *demoDisplay) run(stop <-chan struct{}) {
	tick := time.NewTicker(time.Second / 30)
	defer tick.Stop()
	frame := 0
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			frame++
			d.draw(frame)
			select {
			case d.damage <- region.New(0, 0, d.width, d.height):
			default:
			}
		}
	}
}

func (d *demoDisplay) draw(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for y := 0; y < int(d.height); y++ {
		for x := 0; x < int(d.width); x++ {
			r, g, b := uint8(x), uint8(y), uint8(x+y+frame)
			switch {
			case x < frame%50:
				r, g, b = 255, 0, 0
			case x > int(d.width)-50:
				r, g, b = 0, 255, 0
			case y < 50-frame%50:
				r, g, b = 255, 255, 0
			case y > int(d.height)-50:
				r, g, b = 0, 0, 255
			}
			px := pixelformat.RGBA32.Pack(uint16(r), uint16(g), uint16(b), 0)
			_ = d.fb.SetPixel(int32(x), int32(y), px)
		}
	}
}

func (d *demoDisplay) Dimensions() (uint16, uint16) { return d.width, d.height }

func (d *demoDisplay) Snapshot(reg region.Region) (*framebuffer.FrameBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub := framebuffer.New(region.New(0, 0, reg.W, reg.H), d.fb.Format)
	if err := sub.Blit(d.fb, reg, region.Point{}); err != nil {
		return nil, err
	}
	return sub, nil
}

func (d *demoDisplay) Damage() <-chan region.Region { return d.damage }

func (d *demoDisplay) KeyEvent(down bool, key uint32) error {
	d.logger.Printf("key event: down=%v key=%#x", down, key)
	return nil
}

func (d *demoDisplay) PointerEvent(buttonMask uint8, x, y uint16) error {
	d.logger.Printf("pointer event: mask=%#x x=%d y=%d", buttonMask, x, y)
	return nil
}

func (d *demoDisplay) ReadClipboard(types extclipboard.TypeMask) (map[extclipboard.TypeMask][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == "" {
		return nil, nil
	}
	return map[extclipboard.TypeMask][]byte{extclipboard.TypeText: []byte(d.text)}, nil
}

func (d *demoDisplay) WriteClipboard(text string) error {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
	d.logger.Printf("clipboard updated: %d bytes", len(text))
	return nil
}

func (d *demoDisplay) SetDesktopSize(screens []protocol.ScreenInfo) (uint16, uint16, error) {
	d.logger.Printf("ignoring SetDesktopSize from client (demo backend is fixed-size)")
	return d.width, d.height, nil
}
