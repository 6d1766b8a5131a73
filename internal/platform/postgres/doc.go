// Package postgres implements the store interfaces against PostgreSQL
// using the pgx stdlib driver.
package postgres
