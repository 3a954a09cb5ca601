package corelang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1024, cfg.GetInt("compiler.max_recursion"))
	assert.Equal(t, 200, cfg.GetInt("compiler.max_macro_expand"))
	assert.Equal(t, 65535, cfg.GetInt("compiler.max_constants"))
	assert.True(t, cfg.GetBool("compiler.optimize_tail_calls"))
	assert.Equal(t, 4096, cfg.GetInt("parser.max_frame_depth"))
}

func TestConfigSetAndGetRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.SetString("custom.name", "corelang")
	assert.Equal(t, "corelang", cfg.GetString("custom.name"))
}

func TestConfigWrongTypeGetPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetString("compiler.max_recursion") })
}

func TestConfigReassignWrongTypePanics(t *testing.T) {
	cfg := NewConfig()
	(*cfg)["compiler.max_recursion"] = &cfgVal{}
	(*cfg)["compiler.max_recursion"].assignType(cfgValType_Int)
	assert.Panics(t, func() {
		(*cfg)["compiler.max_recursion"].assignType(cfgValType_String)
	})
}

func TestConfigMissingKeyPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetInt("no.such.key") })
}
