package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/directory"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/medicalrecord"
)

var ErrNotAuthor = fmt.Errorf("medical record was written by another doctor: %w", apperr.ErrInvalidState)

type MedicalRecordRequest struct {
	PatientID    string `json:"patient_id"`
	Diagnosis    string `json:"diagnosis"`
	Treatment    string `json:"treatment"`
	Prescription string `json:"prescription"`
}

// CreateMedicalRecord files a record by doctorID. Unlike bookings, an
// unknown patient is rejected when a directory is configured.
func (s *Service) CreateMedicalRecord(ctx context.Context, doctorID string, req MedicalRecordRequest) (medicalrecord.Record, error) {
	if s.directory != nil && req.PatientID != "" {
		if _, err := directory.FindWithRole(ctx, s.directory, req.PatientID, directory.RolePatient); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return medicalrecord.Record{}, fmt.Errorf("create medical record: unknown patient %s: %w", req.PatientID, apperr.ErrValidation)
			}
			return medicalrecord.Record{}, fmt.Errorf("create medical record: %w", err)
		}
	}

	rec, err := s.records.Create(ctx, medicalrecord.NewRecord{
		PatientID:    req.PatientID,
		DoctorID:     doctorID,
		Diagnosis:    req.Diagnosis,
		Treatment:    req.Treatment,
		Prescription: req.Prescription,
	})
	if err != nil {
		return medicalrecord.Record{}, fmt.Errorf("create medical record: %w", err)
	}

	s.publish(ctx, events.MedicalRecordCreated, "", map[string]any{
		"record_id":  rec.ID,
		"patient_id": rec.PatientID,
		"doctor_id":  doctorID,
	})
	return rec, nil
}

// UpdateMedicalRecord lets the authoring doctor replace the clinical fields.
func (s *Service) UpdateMedicalRecord(ctx context.Context, doctorID, id string, c medicalrecord.Changes) (medicalrecord.Record, error) {
	rec, err := s.records.Update(ctx, id, c, authoredBy(doctorID))
	if err != nil {
		return medicalrecord.Record{}, fmt.Errorf("update medical record: %w", err)
	}

	s.publish(ctx, events.MedicalRecordUpdated, "", map[string]any{
		"record_id":  rec.ID,
		"patient_id": rec.PatientID,
		"doctor_id":  doctorID,
	})
	return rec, nil
}

func (s *Service) GetMedicalRecord(ctx context.Context, id string) (medicalrecord.Record, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) AllMedicalRecords(ctx context.Context) ([]medicalrecord.Record, error) {
	return s.records.All(ctx)
}

func (s *Service) RecordsForPatient(ctx context.Context, patientID string) ([]medicalrecord.Record, error) {
	return s.records.ByPatient(ctx, patientID)
}

func (s *Service) RecordsForDoctor(ctx context.Context, doctorID string) ([]medicalrecord.Record, error) {
	return s.records.ByDoctor(ctx, doctorID)
}

func authoredBy(doctorID string) medicalrecord.Guard {
	return func(r medicalrecord.Record) error {
		if r.DoctorID != doctorID {
			return fmt.Errorf("%s: %w", r.ID, ErrNotAuthor)
		}
		return nil
	}
}
