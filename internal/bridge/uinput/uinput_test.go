package uinput

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUserDevSetsIdentityAndName(t *testing.T) {
	d := newUserDev("gcfeeder virtual pad")
	assert.Equal(t, uint16(0x06), d.Bustype)
	assert.Equal(t, uint16(0x045E), d.Vendor)
	assert.Equal(t, uint16(0x028E), d.Product)
	assert.Equal(t, "gcfeeder virtual pad", string(d.Name[:len("gcfeeder virtual pad")]))
}

func TestRumbleAlwaysOff(t *testing.T) {
	b := &Bridge{}
	assert.Equal(t, int(0), int(b.RumbleState()))
	b.NotifyRumbleConsumed() // must not panic with no device attached
}
