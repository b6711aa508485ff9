package notifications

// EffectiveFrequencies resolves the delivery frequencies for a notification
// of the given type on the given channel.
//
// Resolution order: the first rule matching type and channel wins and its
// frequency list is returned whole; with no match the document's default
// frequency applies, and an unset default means IMMEDIATE. The
// unsubscribeAllEmail flag is applied last and unconditionally collapses
// EMAIL delivery to NONE, regardless of any rule that says otherwise.
func EffectiveFrequencies(p *Preferences, typ NotificationType, ch Channel) FrequencyList {
	if p == nil {
		p = DefaultPreferences("")
	}
	def := p.DefaultFrequency
	if def == "" {
		def = FrequencyImmediate
	}
	freqs := FrequencyList{def}
	for _, rule := range p.Rules {
		if rule.Type == typ && rule.Channel == ch && len(rule.Frequencies) > 0 {
			freqs = rule.Frequencies
			break
		}
	}
	if ch == ChannelEmail && p.UnsubscribeAllEmail {
		return FrequencyList{FrequencyNone}
	}
	return freqs
}
