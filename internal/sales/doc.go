// Package sales implements the sales-records dataset: CSV bulk ingestion
// with validation and conflict reconciliation into PostgreSQL, keyset
// pagination over the (order_date, order_id) composite key, and point/
// aggregate queries.
//
// All store interaction for one logical operation runs in a single
// transaction; an import stages the upload in a transaction-scoped temp
// table via COPY, classifies rows set-based in SQL, and reconciles valid
// typed rows with ON CONFLICT handling.
package sales
