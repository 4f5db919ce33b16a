// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package.
//
// Importing this package makes the following storage kinds available:
//
//   - "memory"   (bulkimport/internal/storage/memory)
//   - "mongo"    (bulkimport/internal/storage/mongo)
//   - "mssql"    (bulkimport/internal/storage/mssql)
//   - "mysql"    (bulkimport/internal/storage/mysql)
//   - "parquet"  (bulkimport/internal/storage/parquetfile)
//   - "postgres" (bulkimport/internal/storage/postgres)
//   - "sqlite"   (bulkimport/internal/storage/sqlite)
//
// Typical usage:
//
//	import _ "bulkimport/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind:  spec.Storage.Kind,
//	    DSN:   spec.Storage.DB.DSN,
//	    Table: spec.Table(),
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//
//	if spec.Storage.DB.AutoCreateTable {
//	    if err := storage.EnsureTableFromPipeline(ctx, spec, repo); err != nil {
//	        // handle DDL error
//	    }
//	}
package all

import (
	_ "bulkimport/internal/storage/memory"
	_ "bulkimport/internal/storage/mongo"
	_ "bulkimport/internal/storage/mssql"
	_ "bulkimport/internal/storage/mysql"
	_ "bulkimport/internal/storage/parquetfile"
	_ "bulkimport/internal/storage/postgres"
	_ "bulkimport/internal/storage/sqlite"
)
