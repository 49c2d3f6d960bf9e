//go:build linux

package smbus

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// i2c-dev ioctl requests (linux/i2c-dev.h, linux/i2c.h).
const (
	i2cRetries = 0x0701
	i2cTimeout = 0x0702
	i2cSlave   = 0x0703
	i2cRdwr    = 0x0707

	i2cMsgRead = 0x0001
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// i2cRdwrData mirrors struct i2c_rdwr_ioctl_data.
type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Pause between the pointer write and the data read of a StopRead, giving
// the host controller time to latch the register.
const stopReadBreather = 150 * time.Microsecond

// RealBus talks to the bus through a Linux i2c-dev node. The bus clock is
// fixed by the adapter's device tree and is not configurable here.
type RealBus struct {
	path string
	file *os.File
}

// OpenReal opens an i2c-dev node such as /dev/i2c-1.
func OpenReal(path string) (*RealBus, error) {
	b := &RealBus{path: path}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *RealBus) open() error {
	f, err := os.OpenFile(b.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.path, err)
	}

	fd := int(f.Fd())
	// Keep stalls short: 20ms transaction timeout (ioctl unit is 10ms),
	// no automatic retries. A wedged transfer must surface, not repeat.
	if err := unix.IoctlSetInt(fd, i2cTimeout, 2); err != nil {
		f.Close()
		return fmt.Errorf("set i2c timeout: %w", err)
	}
	if err := unix.IoctlSetInt(fd, i2cRetries, 0); err != nil {
		f.Close()
		return fmt.Errorf("set i2c retries: %w", err)
	}

	b.file = f
	return nil
}

// StopRead writes the register pointer, stops, then reads one byte in a
// separate transaction.
func (b *RealBus) StopRead(addr uint16, reg uint8) (uint8, error) {
	fd := int(b.file.Fd())
	if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		return 0, fmt.Errorf("select device 0x%02x: %w", addr, err)
	}

	if _, err := b.file.Write([]byte{reg}); err != nil {
		return 0, fmt.Errorf("write register 0x%02x: %w", reg, err)
	}

	time.Sleep(stopReadBreather)

	var buf [1]byte
	n, err := b.file.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("read register 0x%02x: %w", reg, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("read register 0x%02x: got %d bytes", reg, n)
	}
	return buf[0], nil
}

// RestartRead performs a combined write/read transaction with a repeated
// start between the halves.
func (b *RealBus) RestartRead(addr uint16, reg uint8) (uint8, error) {
	regBuf := [1]byte{reg}
	var val [1]byte

	msgs := [2]i2cMsg{
		{addr: addr, flags: 0, len: 1, buf: uintptr(unsafe.Pointer(&regBuf[0]))},
		{addr: addr, flags: i2cMsgRead, len: 1, buf: uintptr(unsafe.Pointer(&val[0]))},
	}
	data := i2cRdwrData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: 2,
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.file.Fd(), i2cRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(&regBuf)
	runtime.KeepAlive(&val)
	runtime.KeepAlive(&msgs)
	if errno != 0 {
		return 0, fmt.Errorf("i2c rdwr 0x%02x/0x%02x: %w", addr, reg, errno)
	}
	return val[0], nil
}

// Reinit closes and reopens the device node, re-applying the timeout and
// retry settings. The kernel resets the adapter state on open.
func (b *RealBus) Reinit() error {
	if b.file != nil {
		b.file.Close()
		b.file = nil
	}
	if err := b.open(); err != nil {
		return fmt.Errorf("reinit bus: %w", err)
	}
	return nil
}

// Close releases the device node.
func (b *RealBus) Close() error {
	if b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}
