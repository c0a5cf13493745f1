package repository

// PackageRow is one record of the packages table. Data holds the JSON
// encoding of the record; Position keeps insertion order.
type PackageRow struct {
	Position int    `db:"position"`
	ID       string `db:"id"`
	Data     []byte `db:"data"`
}
