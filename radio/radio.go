// Package radio implements the driver for the NXP TEA5767 FM radio
// receiver, a low-power stereo tuner programmed over I2C.
//
// The main implementation is under the TEA5767Driver and it requires
// some additional configuration via TEA5767Config structure.
//
// The original driver was written in C++ for the Arduino Wire library
// and can be found at https://github.com/cegea/tea5767_i2c
//
// To read about the specifications of the receiver, read the following
// document:
// https://www.nxp.com/docs/en/data-sheet/TEA5767HN.pdf
package radio

import (
	"errors"
	"fmt"
	"math"

	"gobot.io/x/gobot"
	"gobot.io/x/gobot/drivers/i2c"
)

// Misc constants.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// Address is the fixed 7-bit bus address of the TEA5767.
	Address = 0x60

	// TEA5767_REGISTERS is the size of the chip register file. The chip
	// only supports transferring the full file, so every write and every
	// read moves exactly this many bytes.
	TEA5767_REGISTERS = 5
)

// Band mode selection. The band decides the valid frequency range
// programmed into the PLL.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// EU_BAND covers the European/US FM range, 87.5 MHz ... 108 MHz.
	EU_BAND = iota

	// JP_BAND covers the Japanese FM range, 76 MHz ... 91 MHz.
	JP_BAND
)

// Frequency limits in MHz for each band mode.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	MIN_FREQ_EU = 87.5
	MAX_FREQ_EU = 108.0
	MIN_FREQ_JP = 76.0
	MAX_FREQ_JP = 91.0
)

// ADC signal level thresholds. The chip reports a 4-bit level (0-15) on
// read-back; these are the conventional cut-off points for classifying
// reception quality.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	ADC_LOW  = 5
	ADC_MID  = 7
	ADC_HIGH = 10
)

// Search stop levels for the autoseek function. The two SSL bits select
// the ADC threshold a station has to reach before the seek stops.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// SEARCH_STOP_LOW stops on anything above ADC level 5.
	SEARCH_STOP_LOW = 0x01

	// SEARCH_STOP_MID stops on anything above ADC level 7.
	SEARCH_STOP_MID = 0x02

	// SEARCH_STOP_HIGH stops on anything above ADC level 10.
	SEARCH_STOP_HIGH = 0x03
)

// Search directions for the autoseek function.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	SEARCH_DOWN = 0
	SEARCH_UP   = 1
)

// Write register bit assignments, taken from the TEA5767HN data sheet.
// Bytes 0-1 carry mute, search mode and the 14-bit PLL word; byte 2
// carries the seek configuration and channel mutes; byte 3 carries the
// power and audio processing flags; byte 4 stays at the test default.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// WREG_MUTE mutes both audio channels. Byte 0, bit 7.
	WREG_MUTE = 1 << 7

	// WREG_SEARCH activates the autoseek. Byte 0, bit 6.
	WREG_SEARCH = 1 << 6

	// WREG_PLL_HIGH_MASK masks the upper 6 bits of the PLL word in byte 0.
	WREG_PLL_HIGH_MASK = 0x3F

	// WREG_SEARCH_UP seeks towards higher frequencies. Byte 2, bit 7.
	WREG_SEARCH_UP = 1 << 7

	// WREG_SSL_SHIFT positions the two search stop level bits in byte 2.
	WREG_SSL_SHIFT = 5

	// WREG_HLSI selects high-side LO injection. Byte 2, bit 4.
	// The PLL formula below assumes it is always set.
	WREG_HLSI = 1 << 4

	// WREG_MONO forces mono reception. Byte 2, bit 3.
	WREG_MONO = 1 << 3

	// WREG_MUTE_RIGHT mutes the right channel. Byte 2, bit 2.
	WREG_MUTE_RIGHT = 1 << 2

	// WREG_MUTE_LEFT mutes the left channel. Byte 2, bit 1.
	WREG_MUTE_LEFT = 1 << 1

	// WREG_STANDBY powers the chip down logically. Byte 3, bit 6.
	WREG_STANDBY = 1 << 6

	// WREG_BAND_JP selects the Japanese band limits. Byte 3, bit 5.
	WREG_BAND_JP = 1 << 5

	// WREG_XTAL selects the 32.768 kHz crystal reference. Byte 3, bit 4.
	// The PLL formula below assumes it is always set.
	WREG_XTAL = 1 << 4

	// WREG_SOFT_MUTE attenuates the audio on weak signals. Byte 3, bit 3.
	WREG_SOFT_MUTE = 1 << 3

	// WREG_HCC enables the high cut control filter. Byte 3, bit 2.
	WREG_HCC = 1 << 2

	// WREG_SNC enables stereo noise cancelling. Byte 3, bit 1.
	WREG_SNC = 1 << 1
)

// Read register bit assignments.
//
//goland:noinspection GoUnusedConst,GoUnnecessarilyExportedIdentifiers,GoSnakeCaseUsage
const (
	// RREG_READY flags the end of a tune or seek. Byte 0, bit 7.
	RREG_READY = 1 << 7

	// RREG_STEREO flags a stereo lock. Byte 0, bit 6.
	RREG_STEREO = 1 << 6

	// RREG_LEVEL_SHIFT positions the 4-bit ADC level in byte 2.
	RREG_LEVEL_SHIFT = 4
)

// Errors reported when the bus transport fails. The chip does not
// distinguish a missing acknowledge from a timing variance, so callers
// that want a retry policy have to build it on top of these.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
var (
	ErrBusWrite = errors.New("tea5767: bus write failed")
	ErrBusRead  = errors.New("tea5767: bus read failed")
)

// TEA5767Driver holds the implementation to talk to the NXP TEA5767
// FM receiver over I2C.
//
// All the mutating setters follow the same pattern: update the
// in-memory tuner state, then push the full 5-byte register image to
// the chip. The chip has no partial write, so a setter never touches
// the bus with less than the whole file.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type TEA5767Driver struct {
	i2cAddr      int
	conn         i2c.Connection
	i2cConnector i2c.Connector
	i2c.Config

	debugMode bool
	debugLog  func(format string, v ...interface{})
	log       func(format string, v ...interface{})

	name string

	// Tuner state pushed to the chip on every write.
	bandMode        int
	frequency       float64
	muted           bool
	mutedLeft       bool
	mutedRight      bool
	softMuted       bool
	standby         bool
	forcedMono      bool
	noiseCancelling bool
	highCutFilter   bool
	searching       bool
	searchDirection uint8
	searchStopLevel uint8

	// Read-back state, refreshed only by ReadStatus.
	ready        bool
	stereoLocked bool
	signalLevel  uint8
	pllWord      uint16
}

// Status is a decoded snapshot of the chip's read registers.
//
//goland:noinspection GoUnnecessarilyExportedIdentifiers
type Status struct {
	// Ready reports the end of a tune or seek operation.
	Ready bool

	// StereoLocked reports stereo reception on the current station.
	StereoLocked bool

	// SignalLevel is the 4-bit ADC reading, 0 (no signal) to 15.
	SignalLevel uint8

	// PLL is the raw 14-bit frequency word the chip reported.
	PLL uint16

	// Frequency is the tuned frequency in MHz recovered from PLL,
	// rounded to two decimal places.
	Frequency float64
}

// Quality classifies the signal level against the conventional ADC
// thresholds.
func (st Status) Quality() string {
	switch {
	case st.SignalLevel >= ADC_HIGH:
		return "high"
	case st.SignalLevel >= ADC_MID:
		return "mid"
	case st.SignalLevel >= ADC_LOW:
		return "low"
	default:
		return "none"
	}
}

// Name of our device.
func (d *TEA5767Driver) Name() string {
	return d.name
}

// SetName set the name of our device.
func (d *TEA5767Driver) SetName(name string) {
	d.name = name
}

// Connection retrieves the i2c connection to the device.
func (d *TEA5767Driver) Connection() gobot.Connection {
	return d.i2cConnector.(gobot.Connection)
}

// Start the device work. It opens the bus connection, performs the
// one-time ready check and tunes the initial station. The setters
// assume this succeeded and do not re-check the device.
func (d *TEA5767Driver) Start() error {
	if d.frequency == 0 {
		return fmt.Errorf("FM station frequency not set. Use TEA5767Config to prevent this in the future")
	}

	bus := d.GetBusOrDefault(d.i2cConnector.GetDefaultBus())
	var err error
	d.conn, err = d.i2cConnector.GetConnection(d.i2cAddr, bus)
	if err != nil {
		return err
	}

	ready, err := d.getReady()
	if err != nil {
		return err
	}
	if !ready { // the chip did not acknowledge address 0x60
		return fmt.Errorf("couldn't find radio")
	}

	if d.debugMode {
		d.debugLog("Tuning into %.2f MHz\n", d.frequency)
	}

	return d.writeRegisters()
}

// Halt stops the device in a graceful way by putting it in standby.
func (d *TEA5767Driver) Halt() error {
	if d.conn == nil {
		return nil
	}
	return d.SetStandby(true)
}

// Station returns the last requested frequency in MHz. This is the
// in-memory value, no bus traffic happens; use TunedFrequency to ask
// the chip what it actually locked onto.
func (d *TEA5767Driver) Station() float64 {
	return d.frequency
}

// SetStation tunes the given frequency in MHz. Frequencies outside the
// active band are silently clamped to the nearest bound, never
// rejected. Tuning directly also ends any running seek.
func (d *TEA5767Driver) SetStation(freq float64) error {
	d.frequency = checkFreqLimits(freq, d.bandMode)
	d.searching = false
	return d.writeRegisters()
}

// SetStationInc moves the tuned frequency by delta MHz. The seek
// direction is derived from the sign of delta before the frequency is
// clamped back into the band.
func (d *TEA5767Driver) SetStationInc(delta float64) error {
	if delta < 0 {
		d.searchDirection = SEARCH_DOWN
	} else {
		d.searchDirection = SEARCH_UP
	}
	d.frequency = checkFreqLimits(d.frequency+delta, d.bandMode)
	return d.writeRegisters()
}

// SetMute mutes or unmutes both audio channels.
func (d *TEA5767Driver) SetMute(mute bool) error {
	d.muted = mute
	return d.writeRegisters()
}

// SetMuteLeft mutes or unmutes the left audio channel.
func (d *TEA5767Driver) SetMuteLeft(mute bool) error {
	d.mutedLeft = mute
	return d.writeRegisters()
}

// SetMuteRight mutes or unmutes the right audio channel.
func (d *TEA5767Driver) SetMuteRight(mute bool) error {
	d.mutedRight = mute
	return d.writeRegisters()
}

// SetSoftMute turns the soft mute on or off. Soft mute attenuates the
// audio during weak-signal conditions instead of cutting it.
func (d *TEA5767Driver) SetSoftMute(mute bool) error {
	d.softMuted = mute
	return d.writeRegisters()
}

// SetStandby powers the receiver down logically. The tuner state is
// kept in memory and restored by the next setter that clears standby.
func (d *TEA5767Driver) SetStandby(standby bool) error {
	d.standby = standby
	return d.writeRegisters()
}

// SetStereo selects stereo reception. Passing false forces mono.
func (d *TEA5767Driver) SetStereo(stereo bool) error {
	d.forcedMono = !stereo
	return d.writeRegisters()
}

// SetStereoNoiseCancelling turns the SNC feature on or off.
func (d *TEA5767Driver) SetStereoNoiseCancelling(enabled bool) error {
	d.noiseCancelling = enabled
	return d.writeRegisters()
}

// SetHighCutFilter turns the high cut control filter on or off.
func (d *TEA5767Driver) SetHighCutFilter(enabled bool) error {
	d.highCutFilter = enabled
	return d.writeRegisters()
}

// SetSearch starts an autoseek in the given direction (SEARCH_UP or
// SEARCH_DOWN) stopping at the given level (SEARCH_STOP_LOW, _MID or
// _HIGH). The chip seeks from the currently tuned frequency.
func (d *TEA5767Driver) SetSearch(direction, stopLevel uint8) error {
	d.searching = true
	d.searchDirection = direction
	d.searchStopLevel = stopLevel
	return d.writeRegisters()
}

// StopSearch ends a running autoseek. The chip keeps the seek bit set
// until the host clears it, so this has to be called once a station
// was found.
func (d *TEA5767Driver) StopSearch() error {
	d.searching = false
	return d.writeRegisters()
}

// ReadStatus performs one full register read and decodes it. Only the
// designated read-back fields are refreshed, the tuner state is left
// untouched.
func (d *TEA5767Driver) ReadStatus() (Status, error) {
	buf, err := d.readRegisters()
	if err != nil {
		return Status{}, err
	}

	status := decodeStatus(buf)
	d.ready = status.Ready
	d.stereoLocked = status.StereoLocked
	d.signalLevel = status.SignalLevel
	d.pllWord = status.PLL

	if d.debugMode {
		d.debugLog("Status: ready=%t stereo=%t level=%d freq=%.2f MHz\n",
			status.Ready, status.StereoLocked, status.SignalLevel, status.Frequency)
	}

	return status, nil
}

// TunedFrequency asks the chip for the frequency it is locked onto,
// in MHz rounded to two decimal places.
func (d *TEA5767Driver) TunedFrequency() (float64, error) {
	status, err := d.ReadStatus()
	if err != nil {
		return 0, err
	}
	return status.Frequency, nil
}

// getReady checks that the device acknowledges its bus address by
// attempting one full register read. No bytes are decoded; a transport
// failure is reported as not ready rather than an error.
func (d *TEA5767Driver) getReady() (bool, error) {
	buf := make([]byte, TEA5767_REGISTERS)
	n, err := d.conn.Read(buf)
	if err != nil {
		return false, nil
	}
	return n == TEA5767_REGISTERS, nil
}

// registerImage packs the tuner state into the chip's 5-byte write
// register file. It reads the state and mutates nothing.
func (d *TEA5767Driver) registerImage() [TEA5767_REGISTERS]byte {
	var buf [TEA5767_REGISTERS]byte

	pll := frequencyToPLL(d.frequency)

	buf[0] = byte(pll>>8) & WREG_PLL_HIGH_MASK
	if d.muted {
		buf[0] |= WREG_MUTE
	}
	if d.searching {
		buf[0] |= WREG_SEARCH
	}

	buf[1] = byte(pll)

	buf[2] = d.searchStopLevel<<WREG_SSL_SHIFT | WREG_HLSI
	if d.searchDirection == SEARCH_UP {
		buf[2] |= WREG_SEARCH_UP
	}
	if d.forcedMono {
		buf[2] |= WREG_MONO
	}
	if d.mutedRight {
		buf[2] |= WREG_MUTE_RIGHT
	}
	if d.mutedLeft {
		buf[2] |= WREG_MUTE_LEFT
	}

	buf[3] = WREG_XTAL
	if d.standby {
		buf[3] |= WREG_STANDBY
	}
	if d.bandMode == JP_BAND {
		buf[3] |= WREG_BAND_JP
	}
	if d.softMuted {
		buf[3] |= WREG_SOFT_MUTE
	}
	if d.highCutFilter {
		buf[3] |= WREG_HCC
	}
	if d.noiseCancelling {
		buf[3] |= WREG_SNC
	}

	// byte 4 stays at the chip test defaults
	buf[4] = 0

	return buf
}

// writeRegisters pushes the full register image to the chip. A short
// write is reported the same way as a missing acknowledge.
func (d *TEA5767Driver) writeRegisters() error {
	buf := d.registerImage()

	if d.debugMode {
		d.debugLog("*** Registers: %s\n", d.sliceToString(buf[:]))
	}

	n, err := d.conn.Write(buf[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBusWrite, err)
	}
	if n != TEA5767_REGISTERS {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrBusWrite, n, TEA5767_REGISTERS)
	}
	return nil
}

// readRegisters pulls the full register image from the chip.
func (d *TEA5767Driver) readRegisters() ([]byte, error) {
	buf := make([]byte, TEA5767_REGISTERS)
	n, err := d.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusRead, err)
	}
	if n != TEA5767_REGISTERS {
		return nil, fmt.Errorf("%w: read %d of %d bytes -> %s", ErrBusRead, n, TEA5767_REGISTERS, d.sliceToString(buf))
	}

	if d.debugMode {
		d.debugLog("read %d bytes: %s", n, d.sliceToString(buf))
	}
	return buf, nil
}

func (d *TEA5767Driver) sliceToString(val []byte) string {
	res := ""
	for idx := range val {
		res += fmt.Sprintf("[%d]=0x%x(%d) ", idx, val[idx], val[idx])
	}
	return res
}

// decodeStatus unpacks a read register image. Byte 0 carries the ready
// and stereo flags on top of the PLL word, byte 2 carries the ADC
// signal level in the high nibble.
func decodeStatus(buf []byte) Status {
	pll := uint16(buf[0]&WREG_PLL_HIGH_MASK)<<8 | uint16(buf[1])

	return Status{
		Ready:        buf[0]&RREG_READY != 0,
		StereoLocked: buf[0]&RREG_STEREO != 0,
		SignalLevel:  buf[2] >> RREG_LEVEL_SHIFT,
		PLL:          pll,
		Frequency:    pllToFrequency(pll),
	}
}

// frequencyToPLL converts a frequency in MHz to the 14-bit PLL word,
// compensated for the 225 kHz intermediate frequency with high-side
// injection and the 32.768 kHz crystal reference.
func frequencyToPLL(freq float64) uint16 {
	return uint16(math.Round(4 * (freq*1e6 + 225000) / 32768))
}

// pllToFrequency inverts frequencyToPLL, rounding to two decimal
// places for display.
func pllToFrequency(pll uint16) float64 {
	freq := (float64(pll)*32768/4 - 225000) / 1e6
	return math.Round(freq*100) / 100
}

// checkFreqLimits clamps a frequency in MHz to the bounds of the given
// band mode. Pure and idempotent.
func checkFreqLimits(freq float64, bandMode int) float64 {
	minFreq, maxFreq := MIN_FREQ_EU, MAX_FREQ_EU
	if bandMode == JP_BAND {
		minFreq, maxFreq = MIN_FREQ_JP, MAX_FREQ_JP
	}

	if freq < minFreq {
		return minFreq
	}
	if freq > maxFreq {
		return maxFreq
	}
	return freq
}

// TEA5767Config holds the additional configuration needed for
// TEA5767Driver.
type TEA5767Config struct {
	BandMode        int
	Frequency       float64
	ForceMono       bool
	SoftMute        bool
	HighCutFilter   bool
	NoiseCancelling bool
	SearchStopLevel uint8
	DebugMode       bool
	DebugLog        func(format string, v ...interface{})
	Log             func(format string, v ...interface{})
}

// Validate ensures that our TEA5767Driver configuration is valid.
//
//noinspection GoUnnecessarilyExportedIdentifiers
func (c *TEA5767Config) Validate() error {
	if c.Log == nil {
		panic("logging function cannot be nil. Use something like log.Printf or an empty function instead")
	}
	if c.DebugMode && c.DebugLog == nil {
		panic("cannot use debugging mode without configuring a DebugLog function, e.g. log.Printf")
	}

	if c.BandMode != EU_BAND && c.BandMode != JP_BAND {
		return fmt.Errorf("unknown band mode %d", c.BandMode)
	}

	if c.Frequency == 0 {
		return fmt.Errorf("FM station frequency not set")
	}

	clamped := checkFreqLimits(c.Frequency, c.BandMode)
	if clamped != c.Frequency {
		c.Log("FM station frequency %.2f out of band bounds, adjusting to %.2f\n", c.Frequency, clamped)
		c.Frequency = clamped
	}

	if c.SearchStopLevel == 0 {
		c.SearchStopLevel = SEARCH_STOP_MID
	}
	if c.SearchStopLevel > SEARCH_STOP_HIGH {
		c.Log("Search stop level %d out of range, adjusting to %d\n", c.SearchStopLevel, SEARCH_STOP_HIGH)
		c.SearchStopLevel = SEARCH_STOP_HIGH
	}

	return nil
}

// NewTEA5767Driver creates a new GoBot driver for our FM receiver.
func NewTEA5767Driver(connector i2c.Connector, cfg TEA5767Config, options ...func(i2c.Config)) (*TEA5767Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &TEA5767Driver{
		name:         gobot.DefaultName("TEA5767Driver"),
		i2cConnector: connector,
		Config:       i2c.NewConfig(),
		i2cAddr:      Address,

		bandMode:        cfg.BandMode,
		frequency:       cfg.Frequency,
		forcedMono:      cfg.ForceMono,
		softMuted:       cfg.SoftMute,
		highCutFilter:   cfg.HighCutFilter,
		noiseCancelling: cfg.NoiseCancelling,
		searchStopLevel: cfg.SearchStopLevel,
		searchDirection: SEARCH_UP,
		debugMode:       cfg.DebugMode,
		debugLog:        cfg.DebugLog,
		log:             cfg.Log,
	}

	for _, option := range options {
		option(res)
	}

	return res, nil
}
