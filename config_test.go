package rtl_test

import (
	"strings"
	"testing"

	"github.com/rtlkit/rtl"
)

func TestParseConfig(t *testing.T) {
	fc, err := rtl.ParseConfig([]byte(`
design = "rv32"
backend = "native"
allow-fallback = true
cycles = 1000
watch = ["pc"]

[image]
memory = "mem"
path = "boot.bin"
offset = 16
`))
	if err != nil {
		t.Fatal(err)
	}
	if fc.Design != "rv32" || fc.Backend != "native" || !fc.AllowFallback || fc.Cycles != 1000 {
		t.Errorf("parsed %+v", fc)
	}
	if len(fc.Watch) != 1 || fc.Watch[0] != "pc" {
		t.Errorf("watch = %v", fc.Watch)
	}
	if fc.Image.Memory != "mem" || fc.Image.Path != "boot.bin" || fc.Image.Offset != 16 {
		t.Errorf("image = %+v", fc.Image)
	}

	cfg := fc.SimConfig()
	if cfg.Backend != rtl.Native || !cfg.AllowFallback {
		t.Errorf("SimConfig = %+v", cfg)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fc, err := rtl.ParseConfig([]byte(`design = "counter"`))
	if err != nil {
		t.Fatal(err)
	}
	if fc.Backend != "interp" || fc.Cycles != 1 || fc.AllowFallback {
		t.Errorf("defaults: %+v", fc)
	}
}

func TestParseConfigErrors(t *testing.T) {
	data := []struct {
		name, in, want string
	}{
		{"bad toml", `design = `, "parse config"},
		{"bad backend", `backend = "llvm"`, "unknown backend"},
		{"negative cycles", `cycles = -3`, "must not be negative"},
		{"image without memory", "[image]\npath = \"x.bin\"", "image.path set without image.memory"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := rtl.ParseConfig([]byte(d.in))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), d.want) {
				t.Errorf("error %q does not mention %q", err, d.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := rtl.LoadConfig("testdata/does-not-exist.toml"); err == nil {
		t.Fatal("expected an error")
	}
}
