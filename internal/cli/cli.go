package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/api/middleware"
	"github.com/kritiqo/core/internal/config"
	"github.com/kritiqo/core/internal/services"
	"github.com/kritiqo/core/internal/user"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
	userService   *services.UserService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kritiqo",
	Short: "Backend de tri d'emails Kritiqo",
	Long: `Kritiqo est le backend de tri automatique d'emails pour les
professionnels : les boîtes mail connectées sont importées puis classées
par un pipeline de règles et de LLM.

Cet outil en ligne de commande permet :
  - la gestion de la clé API : affichage et réinitialisation
  - la gestion des utilisateurs : création, liste, réinitialisation de mot de passe

Exemples :
  kritiqo key show          # afficher la clé API courante
  kritiqo key reset         # réinitialiser la clé API
  kritiqo user create       # créer un utilisateur
  kritiqo user list         # lister les utilisateurs
  kritiqo user reset-pwd    # réinitialiser un mot de passe`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur : impossible d'initialiser le gestionnaire de clé API : %v\n", err)
		os.Exit(1)
	}

	userManager := user.NewManager(cfg.DataDir)
	userService = services.NewUserService(db, userManager)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
}
