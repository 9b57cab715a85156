// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects registers the "mysql", "postgres" and
// "sqlite" kinds together with their trips-table bootstrappers:
//
//	import _ "github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/all"
package all

import (
	_ "github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/mysql"
	_ "github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/postgres"
	_ "github.com/Altaf-Khan-Jk/Database-Automation/internal/storage/sqlite"
)
