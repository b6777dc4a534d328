package repository

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageWindow normalises page/size and returns LIMIT and OFFSET.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

func sortDirection(order string) string {
	switch order {
	case "asc", "ASC":
		return "ASC"
	default:
		return "DESC"
	}
}
