package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	utils.InitLogger(constants.AppName)

	rootCmd := &cobra.Command{
		Use:           constants.AppName,
		Short:         "KodiPay property-management backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(propertiesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
