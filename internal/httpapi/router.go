package httpapi

import (
	"github.com/gin-gonic/gin"

	"markbook/internal/auth"
)

// Routes mounts the API. authn guards everything past the public endpoints;
// markLimit throttles the unauthenticated marking route.
func (h *Handler) Routes(r *gin.Engine, authn, markLimit gin.HandlerFunc) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/attendance/mark", markLimit, h.Mark)

	api := r.Group("", authn)
	api.GET("/users/me", h.Me)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	manage := api.Group("", auth.RequireRole(auth.RoleSchool, auth.RoleAdmin))

	admin.POST("/schools", h.CreateSchool)
	admin.DELETE("/schools/:id", h.DeleteSchool)
	api.GET("/schools", h.ListSchools)
	api.GET("/schools/:id", h.GetSchool)

	manage.POST("/departments", h.CreateDepartment)
	manage.DELETE("/departments/:id", h.DeleteDepartment)
	api.GET("/departments", h.ListDepartments)

	manage.POST("/classes", h.CreateClass)
	manage.DELETE("/classes/:id", h.DeleteClass)
	api.GET("/classes", h.ListClasses)

	manage.POST("/subjects", h.CreateSubject)
	manage.DELETE("/subjects/:course_code", h.DeleteSubject)
	api.GET("/subjects", h.ListSubjects)

	manage.POST("/teachers", h.AddTeacher)
	manage.PUT("/teachers/:id", h.UpdateTeacher)
	manage.DELETE("/teachers/:id", h.RemoveTeacher)
	api.GET("/teachers", h.ListTeachers)

	manage.POST("/students", h.EnrollStudent)
	manage.PUT("/students/:roll_no", h.UpdateStudent)
	manage.DELETE("/students/:roll_no", h.RemoveStudent)
	api.GET("/students", h.ListStudents)
	api.GET("/students/:roll_no", h.GetStudent)

	teach := api.Group("", auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin))
	teach.POST("/attendance/registers", h.CreateSession)
	api.GET("/attendance/registers", h.ListSessions)
	api.DELETE("/attendance/registers/:code", h.DeleteSession)
	api.GET("/attendance/registers/:code/qr", h.SessionQR)
	api.POST("/attendance/records/:id/reject", h.Reject)
	api.GET("/attendance/logs", h.Logs)

	api.GET("/reports/attendance-summary", h.Summary)
	api.GET("/reports/student-attendance/:roll_no", h.StudentReport)
	api.GET("/reports/attendance-export", h.ExportCSV)
	api.POST("/reports/student-attendance/:roll_no/email", h.EmailReport)

	api.GET("/activities", auth.RequireRole(auth.RoleSchool, auth.RoleAdmin), h.ListActivities)
}
