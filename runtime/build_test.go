package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIdentity(t *testing.T) {
	assert.Equal(t, "dev", Version())
	assert.True(t, BuildTime().IsZero())
	assert.Equal(t, "version dev", String())

	assert.Error(t, SetFirmware(""))
	require.NoError(t, SetFirmware("v1.4"))
	assert.ErrorContains(t, SetFirmware("v1.5"), "v1.4")
	assert.Equal(t, "v1.4", Firmware())
	assert.Equal(t, "version dev, firmware v1.4", String())
}
