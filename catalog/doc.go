// Package catalog reads the current state of the course catalog: course existence, the live rows
// that reference a course, actor display names and the names of reference tables.
//
// It serves the lookup interfaces of package history with plain SQL over sqlx and lib/pq.
// The expected layout (table names can be changed with WithTables):
//
//	courses(id)
//	lessons(id, course_id, title)
//	tests(id, course_id)
//	attachments(id, course_id)
//	course_departments(id, course_id, department_id)
//	course_levels(id, course_id, level_id)
//	users(id, full_name)
//	course_statuses(id, name)
//	departments(id, name)
//	levels(id, name)
package catalog
