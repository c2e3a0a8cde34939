package device

import (
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
)

// Controller is the seam between the decision engine and physical audio
// hardware. Implementations must treat SetFormat as best-effort: a device
// may reject a requested format, which is a reported failure, not a crash.
type Controller interface {
	ListOutputDevices() ([]Info, error)
	DefaultOutputDevice() (*Info, error)
	CurrentFormat(deviceID string) (*Format, error)
	SetFormat(deviceID string, format Format) error
}

// MalgoController implements Controller on top of the miniaudio bindings.
// A fresh context is initialized per call; device handles are not cached
// because the device set can change between calls.
type MalgoController struct {
	log *slog.Logger
}

// NewMalgoController creates a hardware-backed controller.
func NewMalgoController() *MalgoController {
	return &MalgoController{log: logging.ForService("device")}
}

// ListOutputDevices returns the available playback devices.
func (c *MalgoController) ListOutputDevices() ([]Info, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}

	devices := make([]Info, 0, len(infos))
	for i, info := range infos {
		decodedID, err := hexToASCII(info.ID.String())
		if err != nil {
			c.log.Warn("skipping device with undecodable id", "index", i, "error", err)
			continue
		}
		devices = append(devices, Info{
			ID:        decodedID,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// DefaultOutputDevice returns the system default playback device, or nil
// if none is reported.
func (c *MalgoController) DefaultOutputDevice() (*Info, error) {
	devices, err := c.ListOutputDevices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].IsDefault {
			return &devices[i], nil
		}
	}
	if len(devices) > 0 {
		// No explicit default reported, first enumerated device stands in.
		return &devices[0], nil
	}
	return nil, nil
}

// CurrentFormat reads the device's current physical configuration by
// opening a shared-mode stream with no rate constraint and observing what
// the device reports. The bit depth is left unconstrained because shared
// mode does not expose the physical depth reliably.
func (c *MalgoController) CurrentFormat(deviceID string) (*Format, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}

	idx, found := matchDevice(infos, deviceID)
	if !found {
		return nil, errors.Newf("output device not found: %s", deviceID).
			Component("device").
			Category(errors.CategoryDevice).
			Context("device_id", deviceID).
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.DeviceID = infos[idx].ID.Pointer()
	// SampleRate 0 asks for the device's native rate.
	deviceConfig.SampleRate = 0

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "probe_format").
			Context("device_id", deviceID).
			Build()
	}
	rate := float64(dev.SampleRate())
	dev.Uninit()

	return &Format{SampleRate: rate, BitDepth: 0}, nil
}

// SetFormat asks the device to run at the requested format. When no depth
// is pinned, candidate physical formats are tried in descending depth
// order and the first one the hardware allows wins.
func (c *MalgoController) SetFormat(deviceID string, format Format) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}

	idx, found := matchDevice(infos, deviceID)
	if !found {
		return errors.Newf("output device not found: %s", deviceID).
			Component("device").
			Category(errors.CategoryDevice).
			Context("device_id", deviceID).
			Build()
	}

	var lastErr error
	for _, depth := range CandidateDepths(format.BitDepth) {
		deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
		deviceConfig.Playback.DeviceID = infos[idx].ID.Pointer()
		deviceConfig.Playback.Format = depthToMalgoFormat(depth)
		deviceConfig.SampleRate = uint32(format.SampleRate)

		dev, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
		if err != nil {
			lastErr = err
			c.log.Debug("device rejected format",
				"device_id", deviceID,
				"sample_rate", format.SampleRate,
				"bit_depth", depth,
				"error", err)
			continue
		}
		dev.Uninit()
		c.log.Info("device format set",
			"device_id", deviceID,
			"sample_rate", format.SampleRate,
			"bit_depth", depth)
		return nil
	}

	return errors.New(lastErr).
		Component("device").
		Category(errors.CategoryDeviceFormat).
		Context("device_id", deviceID).
		Context("sample_rate", format.SampleRate).
		Context("bit_depth", format.BitDepth).
		Build()
}

// matchDevice finds a device by decoded id or by name, case-insensitive
// substring match on the name as a convenience for configuration.
func matchDevice(infos []malgo.DeviceInfo, deviceID string) (int, bool) {
	for i, info := range infos {
		decodedID, err := hexToASCII(info.ID.String())
		if err != nil {
			continue
		}
		if decodedID == deviceID || info.Name() == deviceID {
			return i, true
		}
		if deviceID != "" && strings.Contains(strings.ToLower(info.Name()), strings.ToLower(deviceID)) {
			return i, true
		}
	}
	return 0, false
}

func depthToMalgoFormat(depth int) malgo.FormatType {
	switch depth {
	case 32:
		return malgo.FormatS32
	case 24:
		return malgo.FormatS24
	case 16:
		return malgo.FormatS16
	default:
		return malgo.FormatUnknown
	}
}

// hexToASCII decodes a hex-encoded device id into its printable form,
// trimming trailing NULs.
func hexToASCII(hexStr string) (string, error) {
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(bytes), "\x00"), nil
}
