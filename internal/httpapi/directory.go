package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"markbook/internal/directory"
)

type schoolRequest struct {
	Name string `json:"school_name" binding:"required"`
	Dean string `json:"school_dean"`
}

func (h *Handler) CreateSchool(c *gin.Context) {
	var req schoolRequest
	if !bindJSON(c, &req) {
		return
	}
	school, err := h.dirStore.CreateSchool(c.Request.Context(), directory.School{Name: req.Name, Dean: req.Dean})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, school)
}

func (h *Handler) ListSchools(c *gin.Context) {
	schools, err := h.dirStore.ListSchools(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if schools == nil {
		schools = []directory.School{}
	}
	c.JSON(http.StatusOK, schools)
}

func (h *Handler) GetSchool(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	school, err := h.dirStore.GetSchool(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, school)
}

func (h *Handler) DeleteSchool(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.dirStore.DeleteSchool(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type departmentRequest struct {
	Name     string `json:"department_name" binding:"required"`
	HOD      string `json:"hod"`
	SchoolID int    `json:"school_id" binding:"required"`
}

func (h *Handler) CreateDepartment(c *gin.Context) {
	var req departmentRequest
	if !bindJSON(c, &req) {
		return
	}
	dep, err := h.dirStore.CreateDepartment(c.Request.Context(), directory.Department{
		Name: req.Name, HOD: req.HOD, SchoolID: req.SchoolID,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, dep)
}

func (h *Handler) ListDepartments(c *gin.Context) {
	schoolID, _ := strconv.Atoi(c.Query("school_id"))
	deps, err := h.dirStore.ListDepartments(c.Request.Context(), schoolID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if deps == nil {
		deps = []directory.Department{}
	}
	c.JSON(http.StatusOK, deps)
}

func (h *Handler) DeleteDepartment(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.dirStore.DeleteDepartment(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type classRequest struct {
	Name         string `json:"class_name" binding:"required"`
	DepartmentID int    `json:"department_id" binding:"required"`
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req classRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.dirStore.CreateClass(c.Request.Context(), directory.Class{
		Name: req.Name, DepartmentID: req.DepartmentID,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, class)
}

func (h *Handler) ListClasses(c *gin.Context) {
	departmentID, _ := strconv.Atoi(c.Query("department_id"))
	classes, err := h.dirStore.ListClasses(c.Request.Context(), departmentID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if classes == nil {
		classes = []directory.Class{}
	}
	c.JSON(http.StatusOK, classes)
}

func (h *Handler) DeleteClass(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.dirStore.DeleteClass(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type subjectRequest struct {
	CourseCode string `json:"course_code" binding:"required"`
	Name       string `json:"subject_name" binding:"required"`
	SchoolID   int    `json:"school_id" binding:"required"`
	Semester   int    `json:"semester" binding:"required,min=1,max=8"`
	ClassID    *int   `json:"class_id"`
}

func (h *Handler) CreateSubject(c *gin.Context) {
	var req subjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.dirStore.CreateSubject(c.Request.Context(), directory.Subject{
		CourseCode: req.CourseCode,
		Name:       req.Name,
		SchoolID:   req.SchoolID,
		Semester:   req.Semester,
		ClassID:    req.ClassID,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *Handler) ListSubjects(c *gin.Context) {
	schoolID, _ := strconv.Atoi(c.Query("school_id"))
	subjects, err := h.dirStore.ListSubjects(c.Request.Context(), schoolID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if subjects == nil {
		subjects = []directory.Subject{}
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *Handler) DeleteSubject(c *gin.Context) {
	if err := h.dirStore.DeleteSubject(c.Request.Context(), c.Param("course_code")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type teacherRequest struct {
	SchoolID int    `json:"school_id" binding:"required"`
	Name     string `json:"teacher_name" binding:"required"`
	Email    string `json:"teacher_email" binding:"required,email"`
	Phone    string `json:"phone_number"`
}

// AddTeacher creates the profile plus a login with a generated password; the
// credentials go out by mail through the worker.
func (h *Handler) AddTeacher(c *gin.Context) {
	var req teacherRequest
	if !bindJSON(c, &req) {
		return
	}
	actorID, _ := actor(c)
	teacher, err := h.dir.AddTeacher(c.Request.Context(), actorID, req.SchoolID, req.Name, req.Email, req.Phone)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, teacher)
}

func (h *Handler) ListTeachers(c *gin.Context) {
	schoolID, _ := strconv.Atoi(c.Query("school_id"))
	teachers, err := h.dirStore.ListTeachers(c.Request.Context(), schoolID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if teachers == nil {
		teachers = []directory.Teacher{}
	}
	c.JSON(http.StatusOK, teachers)
}

type teacherUpdateRequest struct {
	Name  string `json:"teacher_name" binding:"required"`
	Email string `json:"teacher_email" binding:"required,email"`
	Phone string `json:"phone_number"`
}

func (h *Handler) UpdateTeacher(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req teacherUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	actorID, _ := actor(c)
	teacher, err := h.dir.UpdateTeacher(c.Request.Context(), actorID, directory.Teacher{
		ID: id, Name: req.Name, Email: req.Email, Phone: req.Phone,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, teacher)
}

func (h *Handler) RemoveTeacher(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	actorID, _ := actor(c)
	if err := h.dir.RemoveTeacher(c.Request.Context(), actorID, id); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type studentRequest struct {
	RollNo       string `json:"roll_no" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone_number"`
	Email        string `json:"email" binding:"omitempty,email"`
	Semester     int    `json:"semester" binding:"omitempty,min=1,max=8"`
	Year         int    `json:"year"`
	SchoolID     int    `json:"school_id" binding:"required"`
	DepartmentID *int   `json:"department_id"`
	Photo        string `json:"photo_base64" binding:"required"`
}

// EnrollStudent registers a student together with the face embedding the
// marking flow verifies against. A photo without a detectable face fails the
// whole enrollment.
func (h *Handler) EnrollStudent(c *gin.Context) {
	var req studentRequest
	if !bindJSON(c, &req) {
		return
	}
	actorID, _ := actor(c)
	student, err := h.dir.EnrollStudent(c.Request.Context(), actorID, directory.Student{
		RollNo:       req.RollNo,
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Semester:     req.Semester,
		Year:         req.Year,
		SchoolID:     req.SchoolID,
		DepartmentID: req.DepartmentID,
	}, req.Photo)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (h *Handler) GetStudent(c *gin.Context) {
	student, err := h.dirStore.StudentByRoll(c.Request.Context(), c.Param("roll_no"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) ListStudents(c *gin.Context) {
	schoolID, _ := strconv.Atoi(c.Query("school_id"))
	semester, _ := strconv.Atoi(c.Query("semester"))
	students, err := h.dirStore.ListStudents(c.Request.Context(), schoolID, semester)
	if err != nil {
		writeErr(c, err)
		return
	}
	if students == nil {
		students = []directory.Student{}
	}
	c.JSON(http.StatusOK, students)
}

type studentUpdateRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone_number"`
	Email        string `json:"email" binding:"omitempty,email"`
	Semester     int    `json:"semester" binding:"omitempty,min=1,max=8"`
	Year         int    `json:"year"`
	DepartmentID *int   `json:"department_id"`
	Photo        string `json:"photo_base64"`
}

// UpdateStudent updates the profile; a new photo re-enrolls the face.
func (h *Handler) UpdateStudent(c *gin.Context) {
	var req studentUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	actorID, _ := actor(c)
	student, err := h.dir.UpdateStudent(c.Request.Context(), actorID, directory.Student{
		RollNo:       c.Param("roll_no"),
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Semester:     req.Semester,
		Year:         req.Year,
		DepartmentID: req.DepartmentID,
	}, req.Photo)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) RemoveStudent(c *gin.Context) {
	actorID, _ := actor(c)
	if err := h.dir.RemoveStudent(c.Request.Context(), actorID, c.Param("roll_no")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
