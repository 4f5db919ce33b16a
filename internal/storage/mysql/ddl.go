package mysql

import "fmt"

// CreateTableSQL returns idempotent DDL for the cell table. Key columns are
// VARCHAR(191) so the utf8mb4 primary key fits InnoDB's index prefix limit.
func CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"  `entity_id` VARCHAR(191) NOT NULL,\n"+
		"  `family`    VARCHAR(191) NOT NULL,\n"+
		"  `qualifier` VARCHAR(191) NOT NULL,\n"+
		"  `value`     LONGTEXT NOT NULL,\n"+
		"  PRIMARY KEY (`entity_id`, `family`, `qualifier`)\n"+
		") DEFAULT CHARSET=utf8mb4;", myFQN(table))
}
