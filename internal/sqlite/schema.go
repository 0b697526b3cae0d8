package sqlite

// Schema DDL. A sheet exists once it has a row in sheets, even when it has
// no rows. Positions are 1-based and contiguous within a sheet.
const (
	createSheets = `CREATE TABLE IF NOT EXISTS sheets (
    name TEXT PRIMARY KEY
);`

	createSheetRows = `CREATE TABLE IF NOT EXISTS sheet_rows (
    sheet TEXT NOT NULL,
    position INTEGER NOT NULL,
    cells TEXT NOT NULL,
    PRIMARY KEY (sheet, position)
);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createSheets,
	createSheetRows,
}
