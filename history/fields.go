package history

import (
	"github.com/coursehistory/coursehistory-go/changelog"
)

// Field labels that reference data providers contribute.
const (
	LabelStatus     = "Trạng thái"
	LabelDepartment = "Phòng ban"
	LabelLevel      = "Cấp độ"
	LabelLesson     = "Bài học"
)

// fieldDisplayNames maps raw snapshot field names to their Vietnamese labels.
// Several raw names share a label where the entities name the same concept differently.
var fieldDisplayNames = map[string]string{
	"Title":        "Tiêu đề",
	"Name":         "Tên khóa học",
	"Description":  "Mô tả",
	"Position":     "Vị trí",
	"Order":        "Vị trí",
	"Content":      "Nội dung",
	"VideoUrl":     "Đường dẫn video",
	"Duration":     "Thời lượng",
	"Price":        "Giá",
	"FileName":     "Tên tệp",
	"FileUrl":      "Đường dẫn tệp",
	"FileSize":     "Dung lượng tệp",
	"PassingScore": "Điểm đạt",
	"TimeLimit":    "Thời gian làm bài",
	"IsPublished":  "Trạng thái xuất bản",
	"Thumbnail":    "Ảnh đại diện",
	"ImageUrl":     "Ảnh đại diện",
}

// excludedFields are never surfaced: ids, foreign keys already represented structurally, audit columns.
var excludedFields = map[string]struct{}{
	"Id":           {},
	"CourseId":     {},
	"LessonId":     {},
	"TestId":       {},
	"DepartmentId": {},
	"LevelId":      {},
	"StatusId":     {},
	"UserId":       {},
	"CreatedAt":    {},
	"UpdatedAt":    {},
	"CreatedBy":    {},
	"UpdatedBy":    {},
	"DeletedAt":    {},
}

// DisplayName returns the label of a raw field name, or the name itself if it has none.
func DisplayName(field string) string {
	if label, ok := fieldDisplayNames[field]; ok {
		return label
	}

	return field
}

// IsExcludedField reports whether a raw field name is never surfaced in a diff.
func IsExcludedField(field string) bool {
	_, excluded := excludedFields[field]
	return excluded
}

var actionDisplayNames = map[changelog.Action]string{
	changelog.Created:  "Tạo mới",
	changelog.Modified: "Cập nhật",
	changelog.Deleted:  "Xóa",
}

// ActionDisplayName returns the label of an Action.
func ActionDisplayName(action changelog.Action) string {
	if label, ok := actionDisplayNames[action]; ok {
		return label
	}

	return string(action)
}

var entityKindDisplayNames = map[changelog.EntityKind]string{
	changelog.Course:               "Khóa học",
	changelog.Lesson:               "Bài học",
	changelog.Test:                 "Bài kiểm tra",
	changelog.Attachment:           "Tệp đính kèm",
	changelog.CourseDepartmentLink: "Phòng ban của khóa học",
	changelog.CourseLevelLink:      "Cấp độ của khóa học",
}

// EntityKindDisplayName returns the label of an EntityKind.
func EntityKindDisplayName(kind changelog.EntityKind) string {
	if label, ok := entityKindDisplayNames[kind]; ok {
		return label
	}

	return string(kind)
}
