package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "List the font families the engine can see",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		world, err := app.eng.NewWorld(app.engineOptions())
		if err != nil {
			return err
		}
		defer world.Close()

		families := world.FontFamilies()
		if len(families) == 0 {
			fmt.Println("no fonts found")
			return nil
		}
		for _, family := range families {
			fmt.Println(family)
		}
		return nil
	},
}
