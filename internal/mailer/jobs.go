package mailer

import (
	"fmt"
	"strings"
)

// CredentialsJob is the queue payload for a generated-login email.
type CredentialsJob struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	School   string `json:"school"`
}

// Render produces the subject and HTML body for a credentials mail.
func (j CredentialsJob) Render() (string, string) {
	subject := "Your Account Credentials"
	body := fmt.Sprintf(`<html><body>
<p>Dear %s,</p>
<p>An account has been created for you at %s.</p>
<p><b>Email:</b> %s<br><b>Password:</b> %s</p>
<p>Please log in and change your password.</p>
</body></html>`, j.Name, j.School, j.Email, j.Password)
	return subject, body
}

// ReportRow is one course line of a student attendance report.
type ReportRow struct {
	CourseCode string  `json:"course_code"`
	Subject    string  `json:"subject"`
	Total      int     `json:"total"`
	Attended   int     `json:"attended"`
	Percentage float64 `json:"percentage"`
}

// StudentReportJob is the queue payload for an attendance report email.
type StudentReportJob struct {
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	RollNo string      `json:"roll_no"`
	Rows   []ReportRow `json:"rows"`
}

// Render produces the subject and HTML body for a report mail.
func (j StudentReportJob) Render() (string, string) {
	subject := fmt.Sprintf("Attendance Report for %s", j.RollNo)
	var rows strings.Builder
	for _, r := range j.Rows {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%.2f%%</td></tr>",
			r.CourseCode, r.Subject, r.Attended, r.Total, r.Percentage)
	}
	body := fmt.Sprintf(`<html><body>
<p>Dear %s,</p>
<p>Attendance summary for roll number %s:</p>
<table border="1" cellpadding="4">
<tr><th>Course</th><th>Subject</th><th>Attended</th><th>Sessions</th><th>Percentage</th></tr>
%s</table>
</body></html>`, j.Name, j.RollNo, rows.String())
	return subject, body
}
