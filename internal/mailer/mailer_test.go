package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledMailerDrops(t *testing.T) {
	m := New("", "587", "", "", "no-reply@markbook.local")
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send("teacher@example.com", "subject", "<p>hi</p>"))
}

func TestCredentialsJobRender(t *testing.T) {
	subject, body := CredentialsJob{
		Name:     "Priya Sharma",
		Email:    "priya@school.edu",
		Password: "PriyaSCH12041",
		School:   "Hill View School",
	}.Render()

	assert.Equal(t, "Your Account Credentials", subject)
	assert.Contains(t, body, "Priya Sharma")
	assert.Contains(t, body, "priya@school.edu")
	assert.Contains(t, body, "PriyaSCH12041")
	assert.Contains(t, body, "Hill View School")
}

func TestStudentReportJobRender(t *testing.T) {
	subject, body := StudentReportJob{
		Name:   "Arun",
		Email:  "arun@school.edu",
		RollNo: "22CS101",
		Rows: []ReportRow{
			{CourseCode: "CS201", Subject: "Algorithms", Total: 20, Attended: 17, Percentage: 85},
		},
	}.Render()

	assert.Contains(t, subject, "22CS101")
	assert.Contains(t, body, "CS201")
	assert.Contains(t, body, "85.00%")
}
