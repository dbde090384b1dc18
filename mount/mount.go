// Package mount implements the telescope capability module: the
// park/unpark/goto/track session state machine, property reconciliation for
// motion and tracking, and the timed guide pulse sub-protocol. The per
// instrument command vocabulary is supplied through the Driver interface;
// everything above that line is shared by every mount.
package mount

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openastro/ada"
	"github.com/openastro/ada/rules"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
)

// SessionState is the discrete operating mode of the mount. It is owned by
// the poll loop and the reconciliation handlers, both serialised through
// the module lock.
type SessionState int

const (
	Idle SessionState = iota
	Slewing
	Tracking
	Parking
	Parked
	Homing
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Slewing:
		return "Slewing"
	case Tracking:
		return "Tracking"
	case Parking:
		return "Parking"
	case Parked:
		return "Parked"
	case Homing:
		return "Homing"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	return [...]string{"North", "South", "East", "West"}[d]
}

type TrackMode int

const (
	TrackSidereal TrackMode = iota
	TrackLunar
	TrackSolar
	TrackKing
	TrackCustom
)

// TrackRateSidereal is the sidereal rate in arcseconds per second. Custom
// RA track rates are bounded to within ±0.0100 of it.
const TrackRateSidereal = 15.041067

type GPSStatus int

const (
	GPSOff GPSStatus = iota
	GPSOn
	GPSDataOK
)

type TimeSource int

const (
	TimeRS232 TimeSource = iota
	TimeController
	TimeGPS
)

type Hemisphere int

const (
	HemisphereSouth Hemisphere = iota
	HemisphereNorth
)

type PierSide int

const (
	PierUnknown PierSide = iota
	PierEast
	PierWest
)

// SystemStatus is the raw operating state the instrument reports in its
// status reply, before the session state machine interprets it.
type SystemStatus int

const (
	SystemStopped SystemStatus = iota
	SystemTracking
	SystemSlewing
	SystemGuiding
	SystemMeridianFlipping
	SystemParked
	SystemAtHome
)

// Status is one decoded status snapshot.
type Status struct {
	System     SystemStatus
	GPS        GPSStatus
	TrackMode  TrackMode
	SlewRate   int
	TimeSource TimeSource
	Hemisphere Hemisphere
	Longitude  float64
	Latitude   float64
}

// FirmwareInfo is the identification block read during handshake.
type FirmwareInfo struct {
	Model      string
	MainBoard  string
	Controller string
	RA         string
	Dec        string
}

// Driver is the command vocabulary of one mount protocol. Implementations
// translate these calls to wire commands and decode the responses; they
// hold no session state beyond the link itself.
type Driver interface {
	// Handshake establishes communication and probes optional commands,
	// returning the firmware identification and the probed capability set.
	// A transport error fails the handshake; an unsupported probe reply
	// only leaves its capability unset.
	Handshake(ctx context.Context) (FirmwareInfo, ada.CapabilitySet, error)

	Status(ctx context.Context) (Status, error)
	Coords(ctx context.Context) (ra, dec float64, err error)

	SetTarget(ctx context.Context, ra, dec float64) error
	Slew(ctx context.Context) error
	Sync(ctx context.Context) error
	Abort(ctx context.Context) error

	Park(ctx context.Context) error
	Unpark(ctx context.Context) error
	SetParkPosition(ctx context.Context, az, alt float64) error

	StartMotion(ctx context.Context, d Direction) error
	StopMotion(ctx context.Context, d Direction) error

	Guide(ctx context.Context, d Direction, duration time.Duration) error
	GuideRate(ctx context.Context) (ra, dec float64, err error)
	SetGuideRate(ctx context.Context, ra, dec float64) error

	SetTrackMode(ctx context.Context, mode TrackMode) error
	SetTrackEnabled(ctx context.Context, enabled bool) error
	SetTrackRate(ctx context.Context, raOffset float64) error
	SetSlewRate(ctx context.Context, index int) error

	SetTime(ctx context.Context, utc time.Time, offset time.Duration) error
	SetLocation(ctx context.Context, latitude, longitude float64) error

	PierSide(ctx context.Context) (PierSide, error)

	FindHome(ctx context.Context) error
	GotoHome(ctx context.Context) error
	SetCurrentHome(ctx context.Context) error
}

// Property names, shared with clients.
const (
	PropEquatorialCoords = "EQUATORIAL_EOD_COORD"
	PropCoordSet         = "ON_COORD_SET"
	PropPark             = "TELESCOPE_PARK"
	PropParkPosition     = "TELESCOPE_PARK_POSITION"
	PropAbort            = "TELESCOPE_ABORT_MOTION"
	PropTrackState       = "TELESCOPE_TRACK_STATE"
	PropTrackMode        = "TELESCOPE_TRACK_MODE"
	PropTrackRate        = "TELESCOPE_TRACK_RATE"
	PropSlewRate         = "TELESCOPE_SLEW_RATE"
	PropMotionNS         = "TELESCOPE_MOTION_NS"
	PropMotionWE         = "TELESCOPE_MOTION_WE"
	PropPierSide         = "TELESCOPE_PIER_SIDE"
	PropHome             = "TELESCOPE_HOME"
	PropStopAfterPark    = "STOP_AFTER_PARK"
	PropGuideRate        = "GUIDE_RATE"
	PropFirmware         = "FIRMWARE_INFO"
	PropGPSStatus        = "GPS_STATUS"
	PropTimeSource       = "TIME_SOURCE"
	PropHemisphere       = "HEMISPHERE"
	PropGuideNS          = "TELESCOPE_TIMED_GUIDE_NS"
	PropGuideWE          = "TELESCOPE_TIMED_GUIDE_WE"
	PropTime             = "TIME_UTC"
	PropGeographic       = "GEOGRAPHIC_COORD"
)

// Slew confirmation window: after a slew command is accepted the status is
// polled up to slewConfirmAttempts times, slewConfirmDelay apart, until the
// instrument reports it is moving. Some firmware takes a few status cycles
// to reflect an accepted slew.
const (
	slewConfirmAttempts = 5
	slewConfirmDelay    = 100 * time.Millisecond
)

const (
	parkAzKey  = "ParkAz"
	parkAltKey = "ParkAlt"
)

// Mount is the telescope module.
type Mount struct {
	driver Driver
	engine *rules.Engine

	dev     *ada.Device
	section persistence.Section
	logger  *logwrap.Logger

	m         sync.Mutex
	state     SessionState
	prev      *Status
	prevPier  *PierSide
	prevRA    *float64
	prevDec   *float64
	slewDirty bool
	firmware  FirmwareInfo
	latitude  float64
	longitude float64

	guider *guider
}

// New builds the module around a protocol driver. The rules engine may be
// nil when no model specific overrides apply.
func New(driver Driver, engine *rules.Engine) *Mount {
	return &Mount{driver: driver, engine: engine}
}

func (m *Mount) Name() string {
	return "mount"
}

func (m *Mount) Init(d *ada.Device, s persistence.Section) {
	m.dev = d
	m.section = s
	m.logger = d.Logger()
	m.guider = newGuider(m)
}

// State returns the current session state.
func (m *Mount) State() SessionState {
	m.m.Lock()
	defer m.m.Unlock()

	return m.state
}

func (m *Mount) setState(ctx context.Context, to SessionState) {
	if m.state == to {
		return
	}

	from := m.state
	m.state = to

	m.logger.LogInfo(ctx, "Session state changed.", logwrap.Datum("from", from.String()), logwrap.Datum("to", to.String()))
	m.dev.Callbacks().Call(ctx, ada.SessionStateChanged{Module: m.Name(), From: from.String(), To: to.String()})
}

var _ ada.Module = (*Mount)(nil)
