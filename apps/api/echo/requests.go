package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
)

type OpenSessionResponse struct {
	ID string `json:"id"`
}

type SelectionRequest struct {
	ExamID  string `json:"exam_id" validate:"required,identifier"`
	ClassID string `json:"class_id" validate:"required,identifier"`
	// empty for the conduct grid
	SubjectID string `json:"subject_id" validate:"omitempty,identifier"`
}

func (r SelectionRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r SelectionRequest) Key() session.Key {
	return session.Key{ExamID: r.ExamID, ClassID: r.ClassID, SubjectID: r.SubjectID}
}

type CellEditRequest struct {
	StudentID string `json:"student_id" validate:"required,identifier"`
	Field     string `json:"field" validate:"required,cellfield"`
	Value     string `json:"value"`
}

func (r CellEditRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type PasteRequest struct {
	Start  int    `json:"start" validate:"min=0"`
	Column string `json:"column" validate:"required"`
}

func (r PasteRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type PasteResponse struct {
	Changed int           `json:"changed"`
	Rows    []session.Row `json:"rows"`
}
