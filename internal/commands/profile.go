package commands

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vitaminmoo/braceletctl/internal/api"
	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// Profile is the user profile kept on the bracelet, in the YAML form read by
// LoadProfile.
type Profile struct {
	Gender string `yaml:"gender"` // female or male
	Age    int    `yaml:"age"`
	Height int    `yaml:"height"` // cm
	Weight int    `yaml:"weight"` // kg
	Stride int    `yaml:"stride"` // cm
}

// Info converts p to the device record.
func (p Profile) Info() (protocol.PersonalInfo, error) {
	info := protocol.PersonalInfo{Age: p.Age, Height: p.Height, Weight: p.Weight, Stride: p.Stride}
	switch p.Gender {
	case "female", "f", "":
	case "male", "m":
		info.Gender = 1
	default:
		return info, errors.Errorf("gender %q: want female or male", p.Gender)
	}
	return info, nil
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "read profile")
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrapf(err, "parse %s", path)
	}
	return p, nil
}

func ShowProfile(ctx context.Context, c *api.Client, w io.Writer) error {
	info, err := c.GetPersonalInfo(ctx)
	if err != nil {
		return err
	}
	gender := "female"
	if info.Gender == 1 {
		gender = "male"
	}
	title(w, "Profile")
	field(w, "Gender", gender)
	field(w, "Age", info.Age)
	field(w, "Height", info.Height)
	field(w, "Weight", info.Weight)
	field(w, "Stride", info.Stride)
	return nil
}

func SetProfile(ctx context.Context, c *api.Client, w io.Writer, p Profile) error {
	info, err := p.Info()
	if err != nil {
		return err
	}
	if err := c.SetPersonalInfo(ctx, info); err != nil {
		return err
	}
	success(w, "Profile updated")
	return nil
}
