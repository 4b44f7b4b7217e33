package service

import (
	"strings"

	"github.com/noah-isme/classboard-go-api/internal/models"
)

// matchFailure names the step at which deterministic matching gave up.
// Ambiguity is a routine outcome, so these are reasons, not errors.
type matchFailure string

const (
	failStudentName     matchFailure = "student_name_ambiguous_or_unknown"
	failClassName       matchFailure = "class_name_ambiguous_or_unknown"
	failAssignmentTitle matchFailure = "assignment_title_ambiguous_or_unknown"
	failNotEnrolled     matchFailure = "student_not_enrolled_in_class"
	failWrongClass      matchFailure = "assignment_belongs_to_different_class"
	failNotAssigned     matchFailure = "student_not_on_assignment_restriction_list"
)

// matchResult is the resolved identity triple for an auto-confirmed report.
type matchResult struct {
	StudentID    uint
	ClassID      uint
	AssignmentID uint
}

// resolveReport binds the report's free-text identity fields to catalog
// records. Matching is case-insensitive exact with a uniqueness requirement
// at every step; fuzzy scoring is deliberately absent so a name collision
// can never file work under the wrong student. The snapshot is immutable
// for the whole call, which keeps this function pure.
func resolveReport(snapshot CatalogSnapshot, report models.PendingReport) (matchResult, matchFailure) {
	student, ok := uniqueStudentByName(snapshot.Students, report.StudentNameAttempt)
	if !ok {
		return matchResult{}, failStudentName
	}

	class, ok := uniqueClassByName(snapshot.Classes, report.ClassNameAttempt)
	if !ok {
		return matchResult{}, failClassName
	}

	assignment, ok := uniqueAssignmentByTitle(snapshot.Assignments, report.AssignmentTitleAttempt)
	if !ok {
		return matchResult{}, failAssignmentTitle
	}

	// Cross-checks: a name collision across unrelated classes must not
	// silently mis-file a grade.
	if !snapshot.IsEnrolled(class.ID, student.ID) {
		return matchResult{}, failNotEnrolled
	}

	if assignment.ClassID != class.ID {
		return matchResult{}, failWrongClass
	}

	if !assignment.IsAssignedTo(student.ID) {
		return matchResult{}, failNotAssigned
	}

	return matchResult{
		StudentID:    student.ID,
		ClassID:      class.ID,
		AssignmentID: assignment.ID,
	}, ""
}

func uniqueStudentByName(students []models.Student, name string) (models.Student, bool) {
	needle := foldName(name)
	var found models.Student
	count := 0
	for _, student := range students {
		if foldName(student.Name) == needle {
			found = student
			count++
		}
	}

	return found, count == 1
}

func uniqueClassByName(classes []models.Class, name string) (models.Class, bool) {
	needle := foldName(name)
	var found models.Class
	count := 0
	for _, class := range classes {
		if foldName(class.Name) == needle {
			found = class
			count++
		}
	}

	return found, count == 1
}

func uniqueAssignmentByTitle(assignments []models.Assignment, title string) (models.Assignment, bool) {
	needle := foldName(title)
	var found models.Assignment
	count := 0
	for _, assignment := range assignments {
		if foldName(assignment.Title) == needle {
			found = assignment
			count++
		}
	}

	return found, count == 1
}

func foldName(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
