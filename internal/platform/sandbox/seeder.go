// Package sandbox emulates the clinic backend in memory. It serves the same
// REST surface the console talks to and can be filled with reproducible
// synthetic data for development, demos and end-to-end tests.
package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of generated synthetic data.
type SeedConfig struct {
	Patients           int   `json:"patients"`
	Doctors            int   `json:"doctors"`
	PackagesPerPatient int   `json:"packagesPerPatient"`
	RecordsPerDay      int   `json:"recordsPerDay"`
	Days               int   `json:"days"`
	Seed               int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients:           5,
		Doctors:            3,
		PackagesPerPatient: 2,
		RecordsPerDay:      6,
		Days:               7,
		Seed:               42,
	}
}

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients   []string      `json:"patients"`
	Doctors    int           `json:"doctors"`
	Packages   int           `json:"packages"`
	Sessions   int           `json:"sessions"`
	Payments   int           `json:"payments"`
	Records    int           `json:"records"`
	Duration   time.Duration `json:"duration"`
	Overage    int           `json:"overage"`
	WithCredit int           `json:"withCredit"`
}

// ---------------------------------------------------------------------------
// Pools
// ---------------------------------------------------------------------------

var (
	patientNames = []string{
		"Ana Souza", "Bruno Lima", "Carla Mendes", "Diego Rocha", "Elisa Castro",
		"Felipe Araújo", "Gabriela Nunes", "Heitor Pires", "Isabela Costa", "João Ribeiro",
	}
	doctorNames = []string{
		"Dra. Marina Alves", "Dr. Paulo Teixeira", "Dra. Renata Farias", "Dr. Sérgio Moura",
	}
	sessionTypes   = []therapy.SessionType{therapy.SessionSpeechTherapy, therapy.SessionOccupationalTherapy, therapy.SessionPsychology, therapy.SessionPhysiotherapy}
	paymentMethods = []therapy.PaymentMethod{therapy.PaymentCash, therapy.PaymentPix, therapy.PaymentCard}
	sessionValues  = []string{"80", "100", "120", "150"}
	serviceTypes   = []string{"avaliação", "sessão avulsa", "retorno", "laudo"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic synthetic clinic data.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// nextID returns a UUID drawn from the generator's stream so reseeding with
// the same seed reproduces the same ids.
func (g *DataGenerator) nextID() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (g *DataGenerator) pickType() therapy.SessionType {
	return sessionTypes[g.rng.Intn(len(sessionTypes))]
}

func (g *DataGenerator) pickMethod() therapy.PaymentMethod {
	return paymentMethods[g.rng.Intn(len(paymentMethods))]
}

func (g *DataGenerator) pickValue() decimal.Decimal {
	return decimal.RequireFromString(sessionValues[g.rng.Intn(len(sessionValues))])
}

// PatientID is the id of the i-th seeded patient, starting at 0.
func PatientID(i int) string { return fmt.Sprintf("pat-%03d", i+1) }

// DoctorID is the id of the i-th seeded doctor, starting at 0.
func DoctorID(i int) string { return fmt.Sprintf("doc-%02d", i+1) }

// GeneratePackageRequest produces a fully paid package contract whose first
// session is some weeks before now.
func (g *DataGenerator) GeneratePackageRequest(patientID, doctorID string, now time.Time) therapy.CreatePackageRequest {
	in := therapy.CreatePackageInput{
		PatientID:       patientID,
		DoctorID:        doctorID,
		SessionType:     g.pickType(),
		FirstSessionAt:  now.AddDate(0, 0, -7*(1+g.rng.Intn(6))).Truncate(time.Hour),
		SessionValue:    g.pickValue(),
		PaymentType:     therapy.PaymentTypeFull,
		PaymentMethod:   g.pickMethod(),
		DurationMonths:  1 + g.rng.Intn(3),
		SessionsPerWeek: 1 + g.rng.Intn(2),
	}
	in.AmountPaid = in.TotalValue()
	if g.rng.Intn(2) == 0 {
		in.PaymentType = therapy.PaymentTypeAdvance
	}
	return in.Request()
}

// GenerateSessionUse produces a session use; roughly one in six is a
// canceled session, half of those confirmed absences.
func (g *DataGenerator) GenerateSessionUse(pkg *therapy.TherapyPackage, date time.Time) therapy.SessionUsePayload {
	payload := therapy.SessionUsePayload{
		PackageID:   pkg.ID,
		SessionType: pkg.SessionType,
		DoctorID:    pkg.DoctorID,
		Date:        date,
		Status:      therapy.SessionCompleted,
	}
	if g.rng.Intn(6) == 0 {
		payload.Status = therapy.SessionCanceled
		confirmed := g.rng.Intn(2) == 0
		payload.ConfirmedAbsence = &confirmed
		payload.Notes = "paciente não compareceu"
	}
	return payload
}

// GenerateRecord produces a standalone financial record at the given hour of day.
func (g *DataGenerator) GenerateRecord(day time.Time, hour int, patients, doctors int) *financial.FinancialRecord {
	p := g.rng.Intn(patients)
	d := g.rng.Intn(doctors)
	status := therapy.PaymentPaid
	switch g.rng.Intn(10) {
	case 0:
		status = therapy.PaymentCanceled
	case 1:
		status = therapy.PaymentPending
	}
	return &financial.FinancialRecord{
		ID:          g.nextID(),
		PatientID:   PatientID(p),
		PatientName: patientNames[p%len(patientNames)],
		DoctorID:    DoctorID(d),
		DoctorName:  doctorNames[d%len(doctorNames)],
		ServiceType: serviceTypes[g.rng.Intn(len(serviceTypes))],
		Specialty:   g.pickType(),
		Amount:      g.pickValue(),
		Date:        day.Add(time.Duration(hour)*time.Hour + time.Duration(g.rng.Intn(4))*15*time.Minute),
		Method:      g.pickMethod(),
		Status:      status,
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder fills a Store with a complete synthetic data set.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
}

func NewSeeder(config SeedConfig) *Seeder {
	def := DefaultSeedConfig()
	if config.Patients <= 0 {
		config.Patients = def.Patients
	}
	if config.Doctors <= 0 {
		config.Doctors = def.Doctors
	}
	if config.PackagesPerPatient <= 0 {
		config.PackagesPerPatient = def.PackagesPerPatient
	}
	if config.Days <= 0 {
		config.Days = def.Days
	}
	if config.RecordsPerDay < 0 {
		config.RecordsPerDay = 0
	}
	return &Seeder{generator: NewDataGenerator(config.Seed), config: config}
}

// Generate resets store and fills it. Every patient gets PackagesPerPatient
// packages with part of their sessions used; the last package of every other
// patient is used beyond its contract and the first one of every third
// patient receives an extra payment that leaves it in credit.
func (s *Seeder) Generate(store *Store) (*SeedResult, error) {
	start := time.Now()
	store.Reset()
	store.mu.Lock()
	store.newID = s.generator.nextID
	store.mu.Unlock()

	now := store.now()
	g := s.generator
	result := &SeedResult{Doctors: s.config.Doctors}

	for i := 0; i < s.config.Patients; i++ {
		patientID := PatientID(i)
		result.Patients = append(result.Patients, patientID)

		for j := 0; j < s.config.PackagesPerPatient; j++ {
			doctorID := DoctorID((i + j) % s.config.Doctors)
			pkg, err := store.CreatePackage(g.GeneratePackageRequest(patientID, doctorID, now))
			if err != nil {
				return nil, fmt.Errorf("seed package for %s: %w", patientID, err)
			}
			result.Packages++
			result.Payments++

			uses := g.rng.Intn(pkg.TotalSessions)
			for k := 0; k < uses; k++ {
				date := now.AddDate(0, 0, -(uses - k))
				if _, err := store.UseSession(pkg.ID, g.GenerateSessionUse(pkg, date)); err != nil {
					return nil, fmt.Errorf("seed session for %s: %w", pkg.ID, err)
				}
			}

			if j == s.config.PackagesPerPatient-1 && i%2 == 1 {
				// Complete sessions until the contract is exceeded.
				use := therapy.SessionUsePayload{PackageID: pkg.ID, DoctorID: pkg.DoctorID, Date: now, Status: therapy.SessionCompleted}
				for {
					p, err := store.UseSession(pkg.ID, use)
					if err != nil {
						return nil, fmt.Errorf("seed overage for %s: %w", pkg.ID, err)
					}
					if p.SessionsDone > p.TotalSessions {
						break
					}
				}
				result.Overage++
			}

			if j == 0 && i%3 == 0 {
				extra := therapy.PaymentInput{Amount: pkg.SessionValue, Date: now, Method: g.pickMethod(), Notes: "crédito"}
				if _, err := store.RegisterPayment(pkg.ID, extra); err != nil {
					return nil, fmt.Errorf("seed payment for %s: %w", pkg.ID, err)
				}
				result.Payments++
				result.WithCredit++
			}

			final, err := store.GetPackage(pkg.ID)
			if err != nil {
				return nil, err
			}
			result.Sessions += len(final.Sessions)
		}
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	for day := 0; day < s.config.Days; day++ {
		date := today.AddDate(0, 0, -day)
		for r := 0; r < s.config.RecordsPerDay; r++ {
			store.AddRecord(g.GenerateRecord(date, 8+r%10, s.config.Patients, s.config.Doctors))
			result.Records++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
