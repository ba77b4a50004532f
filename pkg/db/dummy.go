package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedDemo fills an empty database with a small classroom so the kiosk UI
// can be exercised without a remote store. Existing rows are left alone.
func SeedDemo(ctx context.Context, db *gorm.DB) error {
	teacher := Teacher{Person: Person{
		ID:          "T-1001",
		FirstName:   "Maria",
		LastName:    "Santos",
		SchoolEmail: "m.santos@example.edu",
		Status:      "active",
	}}

	students := []Student{
		{Person: Person{ID: "S-2001", FirstName: "Juan", LastName: "Dela Cruz", Status: "active"}},
		{Person: Person{ID: "S-2002", FirstName: "Ana", LastName: "Reyes", Status: "active"}},
		{Person: Person{ID: "S-2003", FirstName: "Paolo", LastName: "Garcia", Status: "active"}},
	}

	class := Class{
		ID:          "C-3001",
		Name:        "Mathematics 7 - Rizal",
		SubjectName: "Mathematics",
		GradeLevel:  "7",
		Section:     "Rizal",
		RoomID:      "R-101",
		RoomNumber:  "101",
		TeacherID:   teacher.ID,
		Days:        "Mon,Wed,Fri",
		Time:        "8:00 AM - 9:00 AM",
		TimeStart:   "08:00",
		TimeEnd:     "09:00",
	}

	room := Room{ID: "R-101", Name: "101", IsActive: true}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Session makes the chain reusable across models
		ignore := tx.Clauses(clause.OnConflict{DoNothing: true}).Session(&gorm.Session{})
		if err := ignore.Create(&teacher).Error; err != nil {
			return fmt.Errorf("seed teacher: %w", err)
		}
		if err := ignore.Create(&students).Error; err != nil {
			return fmt.Errorf("seed students: %w", err)
		}
		if err := ignore.Create(&class).Error; err != nil {
			return fmt.Errorf("seed class: %w", err)
		}
		if err := ignore.Create(&room).Error; err != nil {
			return fmt.Errorf("seed room: %w", err)
		}
		for _, s := range students {
			link := Enrollment{ClassID: class.ID, StudentID: s.ID}
			if err := ignore.Create(&link).Error; err != nil {
				return fmt.Errorf("seed enrollment: %w", err)
			}
		}
		return nil
	})
}
