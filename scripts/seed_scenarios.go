// seed_scenarios loads a pair of demo funnel scenarios into the
// configured database so a fresh install has something to list,
// simulate, and optimize against.
//
// Usage:
//
//	go run scripts/seed_scenarios.go
//
// It honors the same DB_* environment variables as the server and
// defaults to the embedded SQLite file. Seeding is idempotent: a
// scenario whose name already exists is left alone.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/datatypes"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/db"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/repos"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/envutil"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

type demoScenario struct {
	name        string
	description string
	steps       []funnel.Step
	params      funnel.GlobalParameters
}

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbSvc, err := db.New(log)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer dbSvc.Close()
	if err := dbSvc.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to migrate database", "error", err)
	}

	repo := repos.NewScenarioRepo(dbSvc.DB(), log)
	for _, demo := range demoScenarios() {
		if err := seed(repo, demo, log); err != nil {
			log.Fatal("Seeding failed", "scenario", demo.name, "error", err)
		}
	}
}

func seed(repo repos.ScenarioRepo, demo demoScenario, log *logger.Logger) error {
	existing, err := repo.GetByName(dbctx.Background(), demo.name)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info("Scenario already present", "name", demo.name, "scenario_id", existing.ID)
		return nil
	}
	stepsJSON, err := json.Marshal(demo.steps)
	if err != nil {
		return err
	}
	paramsJSON, err := json.Marshal(demo.params)
	if err != nil {
		return err
	}
	created, err := repo.Create(dbctx.Background(), &domain.FunnelScenario{
		Name:        demo.name,
		Description: demo.description,
		Steps:       datatypes.JSON(stepsJSON),
		Parameters:  datatypes.JSON(paramsJSON),
	})
	if err != nil {
		if repos.IsUniqueViolation(err) {
			log.Info("Scenario already present", "name", demo.name)
			return nil
		}
		return err
	}
	log.Info("Seeded scenario", "name", demo.name, "scenario_id", created.ID)
	return nil
}

func demoScenarios() []demoScenario {
	return []demoScenario{
		{
			name:        "newsletter-signup",
			description: "Two-step email capture with a soft qualifying question.",
			steps: []funnel.Step{
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputShortText, Invasiveness: 2, Difficulty: 1},
					},
					Boosts:     1,
					ObservedCR: 0.82,
				},
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputRadio, Invasiveness: 1, Difficulty: 1},
						{InputType: funnel.InputCheckbox, Invasiveness: 1, Difficulty: 1},
					},
					ObservedCR: 0.67,
				},
			},
			params: demoParams(funnel.SourceEmail, 4),
		},
		{
			name:        "insurance-quote",
			description: "Five-step quote funnel with an invasive detail page mid-flow.",
			steps: []funnel.Step{
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputDropdown, Invasiveness: 1, Difficulty: 1},
					},
					Boosts:     2,
					ObservedCR: 0.9,
				},
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputRadio, Invasiveness: 2, Difficulty: 2},
						{InputType: funnel.InputSlider, Invasiveness: 1, Difficulty: 2},
					},
					ObservedCR: 0.74,
				},
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputDate, Invasiveness: 3, Difficulty: 2},
						{InputType: funnel.InputShortText, Invasiveness: 4, Difficulty: 3},
					},
					ObservedCR: 0.52,
				},
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputLongText, Invasiveness: 3, Difficulty: 4},
					},
					Boosts:     1,
					ObservedCR: 0.61,
				},
				{
					Questions: []funnel.Question{
						{InputType: funnel.InputCheckbox, Invasiveness: 1, Difficulty: 1},
					},
					ObservedCR: 0.88,
				},
			},
			params: demoParams(funnel.SourcePaidSearch, 3),
		},
	}
}

func demoParams(source funnel.TrafficSource, importance int) funnel.GlobalParameters {
	return funnel.GlobalParameters{
		E:           3,
		NImportance: importance,
		Source:      source,
		C1:          1.0,
		C2:          1.2,
		C3:          0.6,
		WC:          0.5,
		WF:          0.3,
		WE:          0.4,
		WN:          0.6,
		K:           6.0,
		GammaExit:   1.5,
	}
}
