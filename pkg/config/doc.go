/*
Package config loads the audit store settings for relocate.

	            +-------------+
	            |   Config    |
	            |  (Audit)    |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+-----+ +----+----+ +-----+-----+
	|   YAML    | |   HCL   | |   JSON    |
	|  Parser   | | Parser  | |  Parser   |
	+-----------+ +---------+ +-----------+

🎯 Purpose:
- Reads the audit store connection (driver, host, database, table)
- Holds one credential set per role (writer, reader, admin)
- Chooses between the local and the web CA bundle

🔄 Flow:
1. Picks a parser by file extension
2. Decodes the file into Config
3. Validate fills defaults (table, port) and rejects incomplete settings
4. Audit.Credentials resolves the role login, reading password_env if set

🎭 Roles:
Unknown role names passed to ParseRole become writer, so a typo on the
command line never escalates to admin.

🔍 Example:

	cfg, err := config.Load(ctx, "relocate.yaml")
	if err != nil {
		return err
	}
	creds, err := cfg.Audit.Credentials(config.ParseRole(role))
*/
package config
