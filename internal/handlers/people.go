package handlers

import (
	"context"
	"net/http"

	"github.com/MonkyMars/gecho"
	"gorm.io/gorm"

	models "github.com/CLDWare/attendance-kiosk/pkg/db"
)

// PeopleHandler serves teacher and student profiles. Embeddings and raw
// documents stay on the device.
type PeopleHandler struct {
	db *gorm.DB
}

func NewPeopleHandler(db *gorm.DB) *PeopleHandler {
	return &PeopleHandler{db: db}
}

type PersonInfo struct {
	ID            string `json:"id" example:"T-1001"`
	FirstName     string `json:"firstName" example:"Ada"`
	MiddleName    string `json:"middleName,omitempty"`
	LastName      string `json:"lastName" example:"Lovelace"`
	Name          string `json:"name" example:"Ada Lovelace"`
	SchoolEmail   string `json:"schoolEmail,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Status        string `json:"status,omitempty" example:"active"`
	ProfilePicURL string `json:"profilePicUrl,omitempty" example:"/photos/teachers/T-1001"`
	HasEmbedding  bool   `json:"hasEmbedding"`
}

type StudentInfo struct {
	PersonInfo
	GuardianName    string   `json:"guardianName,omitempty"`
	GuardianContact string   `json:"guardianContact,omitempty"`
	ClassIDs        []string `json:"classIds"`
}

type TeachersResponse struct {
	Teachers []PersonInfo `json:"teachers"`
}

type StudentsResponse struct {
	Students []StudentInfo `json:"students"`
}

func toPersonInfo(p models.Person) PersonInfo {
	return PersonInfo{
		ID:            p.ID,
		FirstName:     p.FirstName,
		MiddleName:    p.MiddleName,
		LastName:      p.LastName,
		Name:          p.FullName(),
		SchoolEmail:   p.SchoolEmail,
		ContactNumber: p.ContactNumber,
		Status:        p.Status,
		ProfilePicURL: p.ProfilePicURL,
		HasEmbedding:  len(p.Embedding) > 0,
	}
}

// GetTeachers
//
// @Summary		List teachers
// @Description	List teachers from the local store, optionally only the given comma separated ids
// @Tags			people
// @Accept			json
// @Produce		json
// @Param			ids	query		string	false	"Comma separated teacher ids"
// @Success		200	{object}	apiResponses.BaseResponse{data=TeachersResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/teachers [get]
func (h *PeopleHandler) GetTeachers(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}

	query := gorm.G[models.Teacher](h.db).Order("last_name, first_name")
	if ids := splitIDs(r.URL.Query().Get("ids")); len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	teachers, err := query.Find(r.Context())
	if err != nil {
		sendError(w, err, "People: list teachers")
		return
	}

	out := make([]PersonInfo, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, toPersonInfo(t.Person))
	}
	gecho.Success(w).WithData(TeachersResponse{Teachers: out}).Send()
}

// GetStudents
//
// @Summary		List students
// @Description	List students with their class enrollments, optionally only the given comma separated ids
// @Tags			people
// @Accept			json
// @Produce		json
// @Param			ids	query		string	false	"Comma separated student ids"
// @Success		200	{object}	apiResponses.BaseResponse{data=StudentsResponse}
// @Failure		500	{object}	apiResponses.InternalServerError
// @Router			/students [get]
func (h *PeopleHandler) GetStudents(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()

	query := gorm.G[models.Student](h.db).Order("last_name, first_name")
	if ids := splitIDs(r.URL.Query().Get("ids")); len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	students, err := query.Find(ctx)
	if err != nil {
		sendError(w, err, "People: list students")
		return
	}
	classes, err := h.enrollments(ctx, students)
	if err != nil {
		sendError(w, err, "People: list enrollments")
		return
	}

	out := make([]StudentInfo, 0, len(students))
	for _, s := range students {
		ids := classes[s.ID]
		if ids == nil {
			ids = []string{}
		}
		out = append(out, StudentInfo{
			PersonInfo:      toPersonInfo(s.Person),
			GuardianName:    s.GuardianName,
			GuardianContact: s.GuardianContact,
			ClassIDs:        ids,
		})
	}
	gecho.Success(w).WithData(StudentsResponse{Students: out}).Send()
}

func (h *PeopleHandler) enrollments(ctx context.Context, students []models.Student) (map[string][]string, error) {
	byStudent := make(map[string][]string, len(students))
	if len(students) == 0 {
		return byStudent, nil
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	links, err := gorm.G[models.Enrollment](h.db).Where("student_id IN ?", ids).Order("class_id").Find(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		byStudent[l.StudentID] = append(byStudent[l.StudentID], l.ClassID)
	}
	return byStudent, nil
}
