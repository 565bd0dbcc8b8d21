package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/multirotor-sim/model"
	"github.com/signalsfoundry/multirotor-sim/timectrl"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// readFile validates the path and size of a configuration file and returns
// its contents along with the decoder matching its extension.
func readFile(path string) ([]byte, string, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat %s: %w", cleanPath, err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, "", fmt.Errorf("%s too large: %d bytes (max %d)", cleanPath, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", cleanPath, err)
	}
	return data, ext, nil
}

func decode(data []byte, ext string, out any) error {
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(out)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Load reads a .json, .yaml or .yml configuration file. Fields omitted from
// the file keep their Default values. A relative ephemeris_file is resolved
// against the directory of the configuration file.
func Load(path string) (*Config, error) {
	data, ext, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := Default()
	if err := decode(data, ext, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: failed to parse %s: %w", path, err)
	}

	if f := cfg.RawGNSS.EphemerisFile; f != "" && !filepath.IsAbs(f) {
		cfg.RawGNSS.EphemerisFile = filepath.Join(filepath.Dir(filepath.Clean(path)), f)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: invalid configuration: %w", err)
	}
	return cfg, nil
}

// ephemerisRecord is the on-disk shape of one broadcast ephemeris. Times are
// GPS seconds of the given week; SqrtA may be given in place of A.
type ephemerisRecord struct {
	Sat   int     `json:"sat" yaml:"sat"`
	Name  string  `json:"name" yaml:"name"`
	Week  int64   `json:"week" yaml:"week"`
	Toe   float64 `json:"toe" yaml:"toe"`
	Toc   float64 `json:"toc" yaml:"toc"`
	IODE  int     `json:"iode" yaml:"iode"`
	IODC  int     `json:"iodc" yaml:"iodc"`
	SVA   int     `json:"sva" yaml:"sva"`
	SVH   int     `json:"svh" yaml:"svh"`
	A     float64 `json:"a" yaml:"a"`
	SqrtA float64 `json:"sqrt_a" yaml:"sqrt_a"`
	E     float64 `json:"e" yaml:"e"`
	I0    float64 `json:"i0" yaml:"i0"`
	OMG0  float64 `json:"omg0" yaml:"omg0"`
	Omg   float64 `json:"omg" yaml:"omg"`
	M0    float64 `json:"m0" yaml:"m0"`
	Deln  float64 `json:"deln" yaml:"deln"`
	OMGd  float64 `json:"omgd" yaml:"omgd"`
	Idot  float64 `json:"idot" yaml:"idot"`
	Crc   float64 `json:"crc" yaml:"crc"`
	Crs   float64 `json:"crs" yaml:"crs"`
	Cuc   float64 `json:"cuc" yaml:"cuc"`
	Cus   float64 `json:"cus" yaml:"cus"`
	Cic   float64 `json:"cic" yaml:"cic"`
	Cis   float64 `json:"cis" yaml:"cis"`
	Fit   float64 `json:"fit" yaml:"fit"`
	F0    float64 `json:"f0" yaml:"f0"`
	F1    float64 `json:"f1" yaml:"f1"`
	F2    float64 `json:"f2" yaml:"f2"`
	Tgd   float64 `json:"tgd" yaml:"tgd"`
}

type ephemerisFile struct {
	Ephemerides []ephemerisRecord `json:"ephemerides" yaml:"ephemerides"`
}

func (r ephemerisRecord) ephemeris() model.Ephemeris {
	a := r.A
	if a == 0 && r.SqrtA != 0 {
		a = r.SqrtA * r.SqrtA
	}
	return model.Ephemeris{
		Sat:  r.Sat,
		IODE: r.IODE,
		IODC: r.IODC,
		SVA:  r.SVA,
		SVH:  r.SVH,
		Week: int(r.Week),
		Toe:  timectrl.NewGTime(r.Week, r.Toe),
		Toc:  timectrl.NewGTime(r.Week, r.Toc),
		A:    a,
		E:    r.E,
		I0:   r.I0,
		OMG0: r.OMG0,
		Omg:  r.Omg,
		M0:   r.M0,
		Deln: r.Deln,
		OMGd: r.OMGd,
		Idot: r.Idot,
		Crc:  r.Crc,
		Crs:  r.Crs,
		Cuc:  r.Cuc,
		Cus:  r.Cus,
		Cic:  r.Cic,
		Cis:  r.Cis,
		Toes: r.Toe,
		Fit:  r.Fit,
		F0:   r.F0,
		F1:   r.F1,
		F2:   r.F2,
		Tgd:  r.Tgd,
	}
}

// LoadEphemerides reads broadcast ephemeris records from a .json, .yaml or
// .yml file. Records are returned in file order; records without orbit data
// are kept and later skipped by the raw GNSS channel.
func LoadEphemerides(path string) ([]model.SatelliteDefinition, error) {
	data, ext, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadEphemerides: %w", err)
	}

	var payload ephemerisFile
	if err := decode(data, ext, &payload); err != nil {
		return nil, fmt.Errorf("config.LoadEphemerides: failed to parse %s: %w", path, err)
	}
	if len(payload.Ephemerides) == 0 {
		return nil, fmt.Errorf("config.LoadEphemerides: %s: %w", path, ErrNoSatellites)
	}

	defs := make([]model.SatelliteDefinition, 0, len(payload.Ephemerides))
	for _, r := range payload.Ephemerides {
		eph := r.ephemeris()
		defs = append(defs, model.SatelliteDefinition{
			ID:        r.Sat,
			Name:      r.Name,
			Source:    model.OrbitSourceBroadcast,
			Ephemeris: &eph,
		})
	}
	return defs, nil
}

// Satellites returns every satellite the raw GNSS channel observes: the
// ephemeris file first, then the TLE entries.
func (c *Config) Satellites() ([]model.SatelliteDefinition, error) {
	var defs []model.SatelliteDefinition
	if c.RawGNSS.EphemerisFile != "" {
		eph, err := LoadEphemerides(c.RawGNSS.EphemerisFile)
		if err != nil {
			return nil, err
		}
		defs = append(defs, eph...)
	}
	for _, t := range c.RawGNSS.TLE {
		defs = append(defs, model.SatelliteDefinition{
			ID:       t.ID,
			Name:     t.Name,
			Source:   model.OrbitSourceSpacetrack,
			TLELine1: t.Line1,
			TLELine2: t.Line2,
		})
	}
	return defs, nil
}
