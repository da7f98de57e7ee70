package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Account is a district Account record. NCESID carries the LEAID the
// org staff maintain on each district account.
type Account struct {
	ID           string `json:"Id" salesforce:"Id"`
	Name         string `json:"Name" salesforce:"Name"`
	NCESID       string `json:"NCES_ID__c" salesforce:"NCES_ID__c"`
	BillingState string `json:"BillingState" salesforce:"BillingState"`
}

var accountFields = []string{"Id", "Name", "NCES_ID__c", "BillingState"}

// FetchDistrictAccounts queries every Account carrying an NCES id,
// optionally restricted to one billing state.
func FetchDistrictAccounts(ctx context.Context, c Client, state string) ([]Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE NCES_ID__c != null",
		strings.Join(accountFields, ", "),
	)
	if state != "" {
		soql += fmt.Sprintf(" AND BillingState = '%s'", escapeSoql(strings.ToUpper(state)))
	}

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, "crm: fetch district accounts")
	}
	return accounts, nil
}

// DistrictAliases flattens accounts into a LEAID to account-name map
// for the registry alias columns. The first account per LEAID wins;
// later duplicates are logged and dropped so a dirty org cannot
// silently flip an alias.
func DistrictAliases(accounts []Account) map[string]string {
	log := zap.L().With(zap.String("component", "crm"))
	aliases := make(map[string]string, len(accounts))
	for _, a := range accounts {
		leaid := strings.TrimSpace(a.NCESID)
		name := strings.TrimSpace(a.Name)
		if leaid == "" || name == "" {
			continue
		}
		if prev, ok := aliases[leaid]; ok {
			log.Warn("duplicate NCES id on accounts",
				zap.String("leaid", leaid),
				zap.String("kept", prev),
				zap.String("dropped", name),
			)
			continue
		}
		aliases[leaid] = name
	}
	return aliases
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
