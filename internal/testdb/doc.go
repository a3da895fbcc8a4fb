// Package testdb provides helpers for Postgres integration tests.
//
// Tests run only when DATABASE_URL points at a disposable database; otherwise
// they are skipped. The schema is created from the embedded goose migrations
// once per connection, and each test runs inside a transaction that is rolled
// back when it finishes, so tests can use t.Parallel() without interfering.
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        books := postgres.NewPostgresBookStore(tx, nil)
//	        ...
//	    })
//	}
//
// Tests that exercise code opening its own transactions (for example
// concurrent ratings) use the *sql.DB directly and clean up with
// TruncateAll.
package testdb
