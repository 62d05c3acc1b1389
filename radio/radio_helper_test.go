package radio

import (
	"errors"
	"sync"

	"gobot.io/x/gobot/drivers/i2c"

	"github.com/bartgrantham/si4703/internal/fakechip"
)

// I2CTestAdaptor is a gobot adaptor with a simulated receiver behind its
// i2c connection and digital pins.
type I2CTestAdaptor struct {
	name          string
	chip          *fakechip.Chip
	mtx           sync.Mutex
	i2cConnectErr bool
	closeErr      error
	closed        bool
	pins          map[string][]byte
}

func NewI2cTestAdaptor() *I2CTestAdaptor {
	return &I2CTestAdaptor{
		chip: fakechip.New(),
		pins: map[string][]byte{},
	}
}

func (t *I2CTestAdaptor) DigitalWrite(pin string, b byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.pins[pin] = append(t.pins[pin], b)
	return nil
}

func (t *I2CTestAdaptor) DigitalRead(pin string) (int, error) {
	if t.chip.Reg(0xa)&(1<<14) != 0 {
		return low, nil
	}
	return high, nil
}

func (t *I2CTestAdaptor) Read(b []byte) (int, error) {
	if err := t.chip.Tx(0x10, nil, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (t *I2CTestAdaptor) Write(b []byte) (int, error) {
	if err := t.chip.Tx(0x10, b, nil); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (t *I2CTestAdaptor) Close() error {
	t.closed = true
	return t.closeErr
}

var errSMBus = errors.New("register addressed access is not supported by this chip")

func (t *I2CTestAdaptor) ReadByte() (byte, error)            { return 0, errSMBus }
func (t *I2CTestAdaptor) ReadByteData(uint8) (uint8, error)  { return 0, errSMBus }
func (t *I2CTestAdaptor) ReadWordData(uint8) (uint16, error) { return 0, errSMBus }
func (t *I2CTestAdaptor) WriteByte(byte) error               { return errSMBus }
func (t *I2CTestAdaptor) WriteByteData(uint8, uint8) error   { return errSMBus }
func (t *I2CTestAdaptor) WriteWordData(uint8, uint16) error  { return errSMBus }
func (t *I2CTestAdaptor) WriteBlockData(uint8, []byte) error { return errSMBus }

func (t *I2CTestAdaptor) GetConnection( /* address */ int /* bus */, int) (connection i2c.Connection, err error) {
	if t.i2cConnectErr {
		return nil, errors.New("invalid i2c connection")
	}
	return t, nil
}

func (t *I2CTestAdaptor) GetDefaultBus() int {
	return 0
}

func (t *I2CTestAdaptor) Name() string          { return t.name }
func (t *I2CTestAdaptor) SetName(n string)      { t.name = n }
func (t *I2CTestAdaptor) Connect() (err error)  { return }
func (t *I2CTestAdaptor) Finalize() (err error) { return }
