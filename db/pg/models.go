package pg

// RowModel is one stored table row; position 0 holds the header.
type RowModel struct {
	Position int `gorm:"primaryKey;autoIncrement:false"`
	// Cells is the row as a JSON array.
	Cells string `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for RowModel.
func (RowModel) TableName() string {
	return "order_rows"
}
