package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/allocation"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var medications = []string{
	"Paracetamol",
	"Ibuprofen",
	"Amoxicillin",
	"Metformin",
	"Lisinopril",
	"Atorvastatin",
	"Omeprazole",
	"Cetirizine",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Msg("seed starting")

	doctors := getInt("SEED_DOCTORS", 10)
	patients := getInt("SEED_PATIENTS", 200)
	days := getInt("SEED_DAYS", 3)

	gofakeit.Seed(time.Now().UnixNano())

	doc := buildDirectory(doctors, patients)
	if err := os.MkdirAll(filepath.Dir(cfg.DirectoryFile), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create directory folder")
	}
	if err := directory.WriteFile(cfg.DirectoryFile, doc); err != nil {
		logger.Fatal().Err(err).Msg("write directory")
	}
	logger.Info().Str("file", cfg.DirectoryFile).Int("people", len(doc.People)).Int("medications", len(doc.Medications)).Msg("directory written")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		a.Close()
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer a.Close()

	n, err := seedSlots(ctx, a.Service, doctors, days, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed slots")
	}

	logger.Info().Int("slots", n).Msg("seed complete")
}

func buildDirectory(doctors, patients int) directory.Document {
	var doc directory.Document

	for i := 1; i <= doctors; i++ {
		doc.People = append(doc.People, directory.Person{
			ID:        fmt.Sprintf("D%03d", i),
			Name:      "Dr. " + gofakeit.Name(),
			Role:      directory.RoleDoctor,
			Email:     gofakeit.Email(),
			Specialty: specialties[gofakeit.Number(0, len(specialties)-1)],
		})
	}
	for i := 1; i <= patients; i++ {
		doc.People = append(doc.People, directory.Person{
			ID:    fmt.Sprintf("P%03d", i),
			Name:  gofakeit.Name(),
			Role:  directory.RolePatient,
			Email: gofakeit.Email(),
		})
	}
	doc.People = append(doc.People,
		directory.Person{ID: "PH001", Name: gofakeit.Name(), Role: directory.RolePharmacist, Email: gofakeit.Email()},
		directory.Person{ID: "A001", Name: gofakeit.Name(), Role: directory.RoleAdministrator, Email: gofakeit.Email()},
	)

	for _, name := range medications {
		doc.Medications = append(doc.Medications, directory.Medication{
			Name:  name,
			Stock: gofakeit.Number(20, 200),
		})
	}
	return doc
}

// seedSlots declares half-hour slots from 09:00 to 13:00 for every doctor
// on each of the next days.
func seedSlots(ctx context.Context, svc *allocation.Service, doctors, days int, logger zerolog.Logger) (int, error) {
	count := 0
	tomorrow := time.Now().AddDate(0, 0, 1)

	for d := 0; d < days; d++ {
		date := tomorrow.AddDate(0, 0, d).Format("2006-01-02")
		for i := 1; i <= doctors; i++ {
			doctorID := fmt.Sprintf("D%03d", i)
			start := time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC)
			for start.Hour() < 13 {
				end := start.Add(30 * time.Minute)
				_, err := svc.DeclareSlot(ctx, doctorID, date, start.Format("15:04"), end.Format("15:04"))
				switch {
				case errors.Is(err, slot.ErrDuplicate):
					// seeded on an earlier run
				case err != nil:
					return count, err
				default:
					count++
				}
				start = end
			}
		}
		logger.Info().Str("date", date).Int("slots", count).Msg("slots seeded")
	}
	return count, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
