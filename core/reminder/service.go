// Package reminder emails students and teachers about course activity.
package reminder

import (
	"bytes"
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/grading"
)

const (
	missingSubmissionTmpl = "missing_submission"
	attendanceExportTmpl  = "attendance_export"
	dueDateLayout         = "02/01/2006"
)

var ErrNoTeacherEmail = errors.New("teacher has no email address")

type Service struct {
	mailer core.EmailService
	logger core.Logger
}

func NewService(mailer core.EmailService, logger core.Logger) *Service {
	return &Service{mailer: mailer, logger: logger}
}

// Result tells who was emailed. Skipped lists students without a usable address.
type Result struct {
	Sent    []string `json:"sent"`
	Skipped []string `json:"skipped"`
}

type missingSubmissionData struct {
	StudentName     string
	AssignmentTitle string
	CourseName      string
	DueDate         string
	TeacherName     string
}

// Send emails every student of stat who has not turned the assignment in.
func (svc *Service) Send(ctx context.Context, teacher core.Teacher, course classroom.Course, stat grading.AssignmentStat) (Result, error) {
	res := Result{Sent: []string{}, Skipped: []string{}}

	var due string
	if stat.Assignment.DueDate.Valid {
		due = stat.Assignment.DueDate.Time.Format(dueDateLayout)
	}

	var msgs []*core.EmailMessage
	for _, st := range stat.Students {
		if grading.Classify(st) != grading.BucketNotSubmitted {
			continue
		}
		addr, err := mail.ParseAddress(st.Email)
		if err != nil {
			res.Skipped = append(res.Skipped, st.ID)
			continue
		}
		addr.Name = st.Name

		msg := &core.EmailMessage{
			To:           []mail.Address{*addr},
			Subject:      "Tarea pendiente: " + stat.Assignment.Title,
			TemplateName: missingSubmissionTmpl,
			TemplateData: missingSubmissionData{
				StudentName:     st.Name,
				AssignmentTitle: stat.Assignment.Title,
				CourseName:      course.DisplayName(),
				DueDate:         due,
				TeacherName:     teacher.Name,
			},
		}
		if teacher.Email != "" {
			msg.Cc = []mail.Address{{Name: teacher.Name, Address: teacher.Email}}
		}
		msgs = append(msgs, msg)
		res.Sent = append(res.Sent, st.ID)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(msgs) > 0 {
		svc.mailer.SendMessages(msgs...)
	}
	svc.logger.Info("missing submission reminders queued", teacher, map[string]interface{}{
		"course":     course.ID,
		"assignment": stat.Assignment.ID,
		"sent":       len(res.Sent),
		"skipped":    len(res.Skipped),
	})
	return res, nil
}

type attendanceExportData struct {
	TeacherName string
	CourseName  string
	Date        string
	Present     int
	Total       int
	Percentage  int
}

// SendAttendance emails the CSV export of rec to the teacher.
func (svc *Service) SendAttendance(ctx context.Context, teacher core.Teacher, course classroom.Course, rec attendance.Record) error {
	if teacher.Email == "" {
		return ErrNoTeacherEmail
	}

	name := course.DisplayName()
	if name == "" {
		name = attendance.DefaultCohortName
	}
	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, name, rec); err != nil {
		return errors.Wrap(err, "writing attendance csv")
	}

	stats := rec.Stats()
	date := rec.Date
	if t, err := core.ParseDateKey(rec.Date); err == nil {
		date = t.Format(dueDateLayout)
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:      "Asistencia " + name + " " + date,
		TemplateName: attendanceExportTmpl,
		TemplateData: attendanceExportData{
			TeacherName: teacher.Name,
			CourseName:  name,
			Date:        date,
			Present:     stats.Present,
			Total:       stats.Total,
			Percentage:  stats.Percentage,
		},
	}
	if err := msg.Attach(&buf, attendance.CSVFilename(rec.Date), attendance.CSVContentType); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	svc.mailer.SendMessages(msg)
	return nil
}
