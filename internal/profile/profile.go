// Package profile serves the static school profile bundled with the binary.
package profile

import (
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

//go:embed profile.json
var bundled []byte

func Load() (model.SchoolProfile, error) {
	var p model.SchoolProfile
	if err := json.Unmarshal(bundled, &p); err != nil {
		return model.SchoolProfile{}, errors.Wrap(err, "bundled profile")
	}
	return p, nil
}
