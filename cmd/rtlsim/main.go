// Command rtlsim runs a built-in design under any execution backend, driven
// by a TOML configuration file. It exists to exercise designs from the shell;
// programmatic use goes through the rtl package directly.
//
//	rtlsim -config sim.toml [-design rv32] [-backend jit] [-cycles 100]
//
// Command-line flags override their configuration file counterparts. Memory
// images are flat binary files of little-endian 32-bit words.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"github.com/rtlkit/rtl"
	"github.com/rtlkit/rtl/cores/rv32"
	"github.com/rtlkit/rtl/rtllib"
)

// designs maps config names to design constructors.
var designs = map[string]func() (*rtl.Design, error){
	"rv32": func() (*rtl.Design, error) { return rv32.New(1024) },
	"counter": func() (*rtl.Design, error) {
		c, err := rtllib.Counter(16)
		if err != nil {
			return nil, err
		}
		return rtl.Flatten(c)
	},
}

func main() {
	if err := run(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath = flag.String("config", "", "TOML configuration file")
		design  = flag.String("design", "", "design name (overrides config)")
		backend = flag.String("backend", "", "backend: interp, jit or native (overrides config)")
		cycles  = flag.Int("cycles", -1, "clock edges to run (overrides config)")
	)
	flag.Parse()

	fc := &rtl.FileConfig{Backend: "interp", Cycles: 1}
	if *cfgPath != "" {
		var err error
		if fc, err = rtl.LoadConfig(*cfgPath); err != nil {
			return err
		}
	}
	if *design != "" {
		fc.Design = *design
	}
	if *backend != "" {
		fc.Backend = *backend
	}
	if *cycles >= 0 {
		fc.Cycles = *cycles
	}

	build, ok := designs[fc.Design]
	if !ok {
		return errors.Errorf("unknown design %q (have %s)", fc.Design, designNames())
	}
	d, err := build()
	if err != nil {
		return errors.WithMessagef(err, "build %s", fc.Design)
	}

	s, err := rtl.New(d, fc.SimConfig())
	if err != nil {
		return err
	}
	if fc.Image.Path != "" {
		if err := loadImage(s, fc.Image); err != nil {
			return err
		}
		if err := s.Reset(); err != nil {
			return err
		}
	}
	for _, name := range fc.Watch {
		w := name
		if err := s.Watch(w, func(cycle uint64, v uint64) {
			pterm.Info.Printfln("cycle %d: %s = %#x", cycle, w, v)
		}); err != nil {
			return err
		}
	}

	pterm.Info.Printfln("design %s, backend %s, %d cycles", fc.Design, s.Backend(), fc.Cycles)
	if s.Native() {
		pterm.Info.Printfln("native runner: %s", s.Runner())
	}
	if err := s.RunCycles(fc.Cycles); err != nil {
		return err
	}
	report(s)
	pterm.Success.Printfln("ran %d cycles", s.Cycle())
	return nil
}

func designNames() string {
	names := ""
	for n := range designs {
		if names != "" {
			names += ", "
		}
		names += n
	}
	return names
}

// loadImage reads a flat binary image into the configured memory.
func loadImage(s *rtl.Simulator, img rtl.ImageConfig) error {
	buf, err := ioutil.ReadFile(img.Path)
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	if len(buf)%4 != 0 {
		return errors.Errorf("image %s: size %d is not a multiple of 4", img.Path, len(buf))
	}
	words := make([]uint64, len(buf)/4)
	for i := range words {
		words[i] = uint64(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return s.LoadMemory(img.Memory, img.Offset, words)
}

// report prints the final register state.
func report(s *rtl.Simulator) {
	data := pterm.TableData{{"register", "value"}}
	for id, sig := range s.Design().Signals {
		if sig.Kind != rtl.SigReg {
			continue
		}
		data = append(data, []string{sig.Name, fmt.Sprintf("%#x", s.PeekID(rtl.SignalID(id)))})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}
