package mount

import (
	"context"
	"time"

	"github.com/openastro/ada"
	"github.com/stretchr/testify/mock"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Handshake(ctx context.Context) (FirmwareInfo, ada.CapabilitySet, error) {
	args := m.Called(ctx)
	return args.Get(0).(FirmwareInfo), args.Get(1).(ada.CapabilitySet), args.Error(2)
}

func (m *mockDriver) Status(ctx context.Context) (Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(Status), args.Error(1)
}

func (m *mockDriver) Coords(ctx context.Context) (float64, float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *mockDriver) SetTarget(ctx context.Context, ra, dec float64) error {
	return m.Called(ctx, ra, dec).Error(0)
}

func (m *mockDriver) Slew(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) Sync(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) Abort(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) Park(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) Unpark(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) SetParkPosition(ctx context.Context, az, alt float64) error {
	return m.Called(ctx, az, alt).Error(0)
}

func (m *mockDriver) StartMotion(ctx context.Context, d Direction) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDriver) StopMotion(ctx context.Context, d Direction) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDriver) Guide(ctx context.Context, d Direction, duration time.Duration) error {
	return m.Called(ctx, d, duration).Error(0)
}

func (m *mockDriver) GuideRate(ctx context.Context) (float64, float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *mockDriver) SetGuideRate(ctx context.Context, ra, dec float64) error {
	return m.Called(ctx, ra, dec).Error(0)
}

func (m *mockDriver) SetTrackMode(ctx context.Context, mode TrackMode) error {
	return m.Called(ctx, mode).Error(0)
}

func (m *mockDriver) SetTrackEnabled(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *mockDriver) SetTrackRate(ctx context.Context, raOffset float64) error {
	return m.Called(ctx, raOffset).Error(0)
}

func (m *mockDriver) SetSlewRate(ctx context.Context, index int) error {
	return m.Called(ctx, index).Error(0)
}

func (m *mockDriver) SetTime(ctx context.Context, utc time.Time, offset time.Duration) error {
	return m.Called(ctx, utc, offset).Error(0)
}

func (m *mockDriver) SetLocation(ctx context.Context, latitude, longitude float64) error {
	return m.Called(ctx, latitude, longitude).Error(0)
}

func (m *mockDriver) PierSide(ctx context.Context) (PierSide, error) {
	args := m.Called(ctx)
	return args.Get(0).(PierSide), args.Error(1)
}

func (m *mockDriver) FindHome(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) GotoHome(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) SetCurrentHome(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ Driver = (*mockDriver)(nil)
