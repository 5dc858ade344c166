package root

import (
	authcmd "github.com/luminapos/lumina-saas/apps/cli/cmd/auth"
	backupcmd "github.com/luminapos/lumina-saas/apps/cli/cmd/backup"
	companycmd "github.com/luminapos/lumina-saas/apps/cli/cmd/company"
)

func init() {
	Root().AddCommand(companycmd.Command())
	Root().AddCommand(backupcmd.Command())
	Root().AddCommand(authcmd.Command())
}
