package email

import (
	"fmt"
	"strings"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// SendAtRiskAlert notifies the account's CSM that a sweep flagged the
// account as high risk.
func (s *Service) SendAtRiskAlert(acct *account.Account, result scoring.ScoreResult) error {
	if acct.CSMEmail == "" {
		return fmt.Errorf("account %s has no CSM email on file", acct.ID)
	}
	subject := fmt.Sprintf("[AccountPulse] %s is at high churn risk (score %d)", acct.Name, result.HealthScore)
	body := fmt.Sprintf("Health score: %d (%s risk)\n\nDrivers:\n- %s\n\nRecommended actions:\n- %s\n",
		result.HealthScore, result.RiskTier,
		strings.Join(result.Drivers, "\n- "),
		strings.Join(result.Recommendations, "\n- "))
	return s.Send(acct.CSMEmail, subject, body)
}

func (s *Service) Send(to, subject, body string) error {
	fmt.Printf("Sending email to %s: %s\n", to, subject)
	return nil
}
