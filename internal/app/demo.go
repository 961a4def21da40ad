package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	model "github.com/okian/arena/internal/domain/model"
)

// demoNamespace derives stable demo profile ids.
var demoNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://arena.local/demo"))

type demoProfile struct {
	username string
	fullName string
	career   string
	category model.Category
	rating   int
}

var demoProfiles = []demoProfile{
	{"viper_elena", `Elena "Viper" K.`, "Arquitectura", "femenino", 2842},
	{"mchen_design", "Marcus Chen", "Diseño Gráfico", "masculino", 2750},
	{"sara_j", "Sarah Jenkins", "Marketing", "femenino", 2695},
	{"david_ross", "David Ross", "Ingeniería", "masculino", 2540},
	{"barnaby_dog", "Barnaby", "Mascota", "masculino", 1450},
	{"sir_wags", "Sir Wags", "Mascota", "masculino", 1392},
}

// DemoProfileID returns the stable id of the demo profile with username.
func DemoProfileID(username string) string {
	return uuid.NewSHA1(demoNamespace, []byte(username)).String()
}

// seedDemo loads the demo profiles into the store. Profiles of categories
// that are not configured are skipped.
func (s *Service) seedDemo(ctx context.Context) (int, error) {
	n := 0
	for _, d := range demoProfiles {
		if _, ok := s.knownCategory(string(d.category)); !ok {
			continue
		}
		rating := d.rating
		if rating == 0 {
			rating = s.baselineRating
		}
		_, err := s.store.PutProfile(ctx, model.Profile{
			ID:       DemoProfileID(d.username),
			Category: d.category,
			Rating:   rating,
			Active:   true,
			Username: d.username,
			FullName: d.fullName,
			Career:   d.career,
		})
		if err != nil {
			return n, fmt.Errorf("seed demo profile %s: %w", d.username, err)
		}
		n++
	}
	return n, nil
}
