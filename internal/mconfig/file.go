package mconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"midas/internal/model"
	"midas/internal/status"
	"midas/lib/configutil"

	"github.com/antzucaro/matchr"
)

// FileProvider reads merchant configuration from a directory of
// `<slug>.json5` files, each holding a journey name to Merchant mapping.
// Local overrides follow the usual `<slug>.local.json5` convention.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) FileProvider {
	return FileProvider{dir: dir}
}

func (p FileProvider) Merchant(ctx context.Context, slug string, journey model.Journey) (Merchant, error) {
	byJourney, err := configutil.ReadConfig[map[string]Merchant](
		filepath.Join(p.dir, slug+".json5"),
	)
	if os.IsNotExist(err) {
		detail := "unknown merchant " + slug
		if suggestion := p.nearestSlug(slug); suggestion != "" {
			detail += ", did you mean " + suggestion + "?"
		}
		return Merchant{}, status.Errorf(status.KindConfiguration, "%s", detail)
	}
	if err != nil {
		return Merchant{}, status.Wrap(status.KindConfiguration, err)
	}

	merchant, ok := byJourney[journey.String()]
	if !ok {
		return Merchant{}, status.Errorf(
			status.KindConfiguration,
			"merchant %s has no %s configuration", slug, journey.String(),
		)
	}
	merchant.Slug = slug
	return merchant, nil
}

// nearestSlug finds the known slug closest to the requested one, so typos in
// CLI invocations and callers get a useful hint instead of a bare miss.
func (p FileProvider) nearestSlug(slug string) string {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return ""
	}

	best := ""
	bestDistance := 5
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json5") || strings.Contains(name, ".local.") {
			continue
		}
		known := strings.TrimSuffix(name, ".json5")
		distance := matchr.Levenshtein(slug, known)
		if distance < bestDistance {
			best = known
			bestDistance = distance
		}
	}
	return best
}
