// Package migrate upgrades the fanshare SQLite schema in place.
//
// A Catalog lists versioned Units. Each Unit checks the live schema before changing it,
// so applying it to a database that already has the change does nothing. A Runner reads
// the version recorded in system_settings, applies the newer units in version order
// with one transaction per unit, and records each unit's version inside that same
// transaction. A run that fails leaves the database at the last committed unit, and the
// next run resumes from there.
package migrate
