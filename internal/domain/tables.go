package domain

var Tables = []interface{}{
	// Catalog
	&ProductRecord{},
	// System
	&AdminLog{},
}
